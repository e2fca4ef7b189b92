package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, "", "").Info("case verified", "outcome", "MINOR")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "case verified", line["msg"])
		assert.Equal(t, "MINOR", line["outcome"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, "TEXT", "info").Info("started")
		assert.Contains(t, buf.String(), "msg=started")
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&buf, "json", "warn")
		log.Info("dropped")
		assert.Empty(t, buf.String())
		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})
}
