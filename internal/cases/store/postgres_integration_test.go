//go:build integration

package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"caseverify/pkg/testutil/containers"
)

// TestPostgresCaseStoreSuite runs the shared store behaviour against a real
// PostgreSQL instance, including FOR UPDATE serialization of Execute.
func TestPostgresCaseStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg := containers.NewPostgresContainer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	suite.Run(t, &CaseStoreSuite{
		newStore: func(t *testing.T) Store {
			ctx := context.Background()
			s := NewPostgres(pg.DB, logger)
			if err := s.EnsureSchema(ctx); err != nil {
				t.Fatalf("ensure schema: %v", err)
			}
			if err := pg.Truncate(ctx, "refugees"); err != nil {
				t.Fatalf("truncate: %v", err)
			}
			return noCloseStore{s}
		},
	})
}

// noCloseStore keeps the shared container connection open between tests.
type noCloseStore struct {
	*PostgresStore
}

func (noCloseStore) Close() error {
	return nil
}
