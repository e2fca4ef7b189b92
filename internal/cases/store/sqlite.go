package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"caseverify/internal/cases/models"
	"caseverify/pkg/platform/sentinel"
	txcontext "caseverify/pkg/platform/tx"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

const caseColumns = `individual_number, process_status, family_group_number, full_name,
	family_size, age, gender, country_of_origin, legal_status, location_address,
	date_of_birth, registration_date, nssf_number, updated_at`

// sqliteDSNParams are applied by the modernc driver on every new connection.
// Writers wait up to busy_timeout for the lock instead of failing with
// SQLITE_BUSY, and WAL lets readers run alongside the writer.
const sqliteDSNParams = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// SQLStore persists cases in SQLite through database/sql.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// ensures the refugees table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + sqliteDSNParams
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := NewSQLStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an already-open handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnsureSchema creates the refugees table and its indexes when missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database file is still reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts cases in a single transaction.
func (s *SQLStore) Create(ctx context.Context, cases ...*models.Case) error {
	for _, c := range cases {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO refugees (`+caseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cases {
		if _, err := stmt.ExecContext(ctx,
			c.IndividualNumber,
			c.ProcessStatus.String(),
			c.FamilyGroupNumber,
			c.FullName,
			c.FamilySize,
			c.Age,
			c.Gender,
			c.CountryOfOrigin,
			c.LegalStatus.String(),
			c.LocationAddress,
			c.DateOfBirth,
			c.RegistrationDate,
			nullString(c.IssuedNumber),
			nullMillis(c.UpdatedAt),
		); err != nil {
			if isSQLiteUniqueViolation(err) {
				return fmt.Errorf("insert case %s: %w", c.IndividualNumber, sentinel.ErrConflict)
			}
			return fmt.Errorf("insert case %s: %w", c.IndividualNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

func (s *SQLStore) FindByIndividualNumber(ctx context.Context, individualNumber string) (*models.Case, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM refugees WHERE individual_number = ?`, individualNumber)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	return c, nil
}

// Execute runs validate and mutate inside a write transaction. The
// connection is opened with _txlock=immediate so the row cannot change
// between the read and the update.
func (s *SQLStore) Execute(ctx context.Context, individualNumber string, validate func(*models.Case) error, mutate func(*models.Case)) (*models.Case, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	txCtx := txcontext.WithTx(ctx, tx)

	current, err := s.FindByIndividualNumber(txCtx, individualNumber)
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)

	if err := checkLifecycleWrite(current, working); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(txCtx,
		`UPDATE refugees SET process_status = ?, nssf_number = ?, updated_at = ? WHERE individual_number = ?`,
		working.ProcessStatus.String(),
		nullString(working.IssuedNumber),
		nullMillis(working.UpdatedAt),
		working.IndividualNumber,
	); err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, fmt.Errorf("issued number %s: %w", working.IssuedNumber, sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("update case: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return working, nil
}

func (s *SQLStore) IssuedNumberExists(ctx context.Context, number string) (bool, error) {
	var exists int
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM refugees WHERE nssf_number = ?)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check issued number: %w", err)
	}
	return exists == 1, nil
}

func (s *SQLStore) ListIssued(ctx context.Context) ([]*models.Case, error) {
	return s.query(ctx, `SELECT `+caseColumns+` FROM refugees
		WHERE nssf_number IS NOT NULL ORDER BY individual_number`)
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]*models.Case, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx, `SELECT `+caseColumns+` FROM refugees ORDER BY individual_number LIMIT ?`, limit)
}

func (s *SQLStore) SetCountryOfOrigin(ctx context.Context, country, from string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if from == "" {
		res, err = s.db.ExecContext(ctx, `UPDATE refugees SET country_of_origin = ?`, country)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE refugees SET country_of_origin = ? WHERE country_of_origin = ? COLLATE NOCASE`, country, from)
	}
	if err != nil {
		return 0, fmt.Errorf("update country of origin: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]*models.Case, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var out []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c             models.Case
		processStatus string
		legalStatus   string
		issued        sql.NullString
		updatedAt     sql.NullInt64
	)
	if err := row.Scan(
		&c.IndividualNumber,
		&processStatus,
		&c.FamilyGroupNumber,
		&c.FullName,
		&c.FamilySize,
		&c.Age,
		&c.Gender,
		&c.CountryOfOrigin,
		&legalStatus,
		&c.LocationAddress,
		&c.DateOfBirth,
		&c.RegistrationDate,
		&issued,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	if err := applyStatuses(&c, legalStatus, processStatus); err != nil {
		return nil, err
	}
	c.IssuedNumber = issued.String
	if updatedAt.Valid {
		c.UpdatedAt = time.UnixMilli(updatedAt.Int64).UTC()
	}
	return &c, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixMilli(), Valid: true}
}
