package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Header is the fixed first row of the issuance log.
var Header = []string{
	"NSSF_Number",
	"Individual_Number",
	"Full_Name",
	"Age",
	"Legal_Status",
	"Country_Of_Origin",
	"Process_Status",
	"Action",
	"Timestamp",
}

// CSVStore appends entries to a CSV file. The header is written only when
// the file is created; existing rows are never rewritten.
type CSVStore struct {
	mu   sync.Mutex
	path string
}

// NewCSVStore returns a store writing to path. Parent directories are created
// on first append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string {
	return s.path
}

// Append writes one row and syncs it to disk.
func (s *CSVStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit log dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write audit log header: %w", err)
		}
	}
	if err := w.Write(toRecord(e)); err != nil {
		return fmt.Errorf("write audit log entry: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return f.Sync()
}

// ReadAll returns every entry in file order. A missing file yields no entries.
func (s *CSVStore) ReadAll(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var entries []Entry
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read audit log: %w", err)
		}
		if first {
			first = false
			if len(record) > 0 && record[0] == Header[0] {
				continue
			}
		}
		e, ok := fromRecord(record)
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// IssueDates maps each issued number to the timestamp of its ISSUED entry.
func (s *CSVStore) IssueDates(ctx context.Context) (map[string]time.Time, error) {
	entries, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	dates := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if e.Action != ActionIssued {
			continue
		}
		if _, seen := dates[e.IssuedNumber]; !seen {
			dates[e.IssuedNumber] = e.Timestamp
		}
	}
	return dates, nil
}

func toRecord(e Entry) []string {
	return []string{
		e.IssuedNumber,
		e.IndividualNumber,
		e.FullName,
		strconv.Itoa(e.Age),
		e.LegalStatus,
		e.CountryOfOrigin,
		e.ProcessStatus,
		e.Action,
		e.Timestamp.UTC().Format(TimestampLayout),
	}
}

func fromRecord(record []string) (Entry, bool) {
	if len(record) < len(Header) {
		return Entry{}, false
	}
	age, err := strconv.Atoi(record[3])
	if err != nil {
		return Entry{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, record[8], time.UTC)
	if err != nil {
		return Entry{}, false
	}
	return Entry{
		IssuedNumber:     record[0],
		IndividualNumber: record[1],
		FullName:         record[2],
		Age:              age,
		LegalStatus:      record[4],
		CountryOfOrigin:  record[5],
		ProcessStatus:    record[6],
		Action:           record[7],
		Timestamp:        ts,
	}, true
}
