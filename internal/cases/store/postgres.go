package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"caseverify/internal/cases/models"
	"caseverify/pkg/platform/sentinel"
)

// PostgresStore persists cases in PostgreSQL through GORM.
type PostgresStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgres constructs a PostgreSQL-backed case store.
func NewPostgres(db *gorm.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// EnsureSchema creates the refugees table and the partial unique index on
// issued numbers when missing. Existing columns are never altered.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&caseRow{}) {
		if err := db.Migrator().CreateTable(&caseRow{}); err != nil {
			return fmt.Errorf("create refugees table: %w", err)
		}
	}
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_refugees_nssf_number
		ON refugees (nssf_number) WHERE nssf_number IS NOT NULL`).Error; err != nil {
		return fmt.Errorf("create issued number index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, cases ...*models.Case) error {
	if len(cases) == 0 {
		return nil
	}
	rows := make([]caseRow, 0, len(cases))
	for _, c := range cases {
		if err := c.Validate(); err != nil {
			return err
		}
		rows = append(rows, caseRowFromModel(c))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 500).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert cases: %w", sentinel.ErrConflict)
		}
		return s.logError("case_repo_create_failed", err, "count", len(cases))
	}
	return nil
}

func (s *PostgresStore) FindByIndividualNumber(ctx context.Context, individualNumber string) (*models.Case, error) {
	var row caseRow
	err := s.db.WithContext(ctx).
		Where("individual_number = ?", individualNumber).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, s.logError("case_repo_find_failed", err, "individual_number", individualNumber)
	}
	return row.toModel()
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate,
// then writes the lifecycle columns back in the same transaction.
func (s *PostgresStore) Execute(ctx context.Context, individualNumber string, validate func(*models.Case) error, mutate func(*models.Case)) (*models.Case, error) {
	var (
		result      *models.Case
		callbackErr error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row caseRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("individual_number = ?", individualNumber).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return sentinel.ErrNotFound
			}
			return err
		}

		current, err := row.toModel()
		if err != nil {
			return err
		}
		working := current.Clone()
		if err := validate(working); err != nil {
			callbackErr = err
			return err
		}
		mutate(working)
		if err := checkLifecycleWrite(current, working); err != nil {
			callbackErr = err
			return err
		}

		updated := caseRowFromModel(working)
		if err := tx.Model(&caseRow{}).
			Where("individual_number = ?", individualNumber).
			Updates(map[string]any{
				"process_status": updated.ProcessStatus,
				"nssf_number":    updated.IssuedNumber,
				"updated_at":     updated.UpdatedAt,
			}).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("issued number %s: %w", working.IssuedNumber, sentinel.ErrConflict)
			}
			return err
		}
		result = working
		return nil
	})
	if err != nil {
		if callbackErr != nil || errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
			return nil, err
		}
		return nil, s.logError("case_repo_execute_failed", err, "individual_number", individualNumber)
	}
	return result, nil
}

func (s *PostgresStore) IssuedNumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&caseRow{}).
		Where("nssf_number = ?", number).
		Count(&count).Error; err != nil {
		return false, s.logError("case_repo_issued_exists_failed", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) ListIssued(ctx context.Context) ([]*models.Case, error) {
	var rows []caseRow
	if err := s.db.WithContext(ctx).
		Where("nssf_number IS NOT NULL").
		Order("individual_number ASC").
		Find(&rows).Error; err != nil {
		return nil, s.logError("case_repo_list_issued_failed", err)
	}
	return toModels(rows)
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*models.Case, error) {
	q := s.db.WithContext(ctx).Order("individual_number ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []caseRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, s.logError("case_repo_list_failed", err)
	}
	return toModels(rows)
}

func (s *PostgresStore) SetCountryOfOrigin(ctx context.Context, country, from string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&caseRow{})
	if from != "" {
		q = q.Where("LOWER(country_of_origin) = LOWER(?)", from)
	} else {
		q = q.Where("1 = 1")
	}
	res := q.Update("country_of_origin", country)
	if res.Error != nil {
		return 0, s.logError("case_repo_set_country_failed", res.Error, "country", country)
	}
	return res.RowsAffected, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "cases",
		"layer", "store",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("case repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type caseRow struct {
	IndividualNumber  string     `gorm:"column:individual_number;primaryKey;size:20"`
	ProcessStatus     string     `gorm:"column:process_status;size:20;not null"`
	FamilyGroupNumber string     `gorm:"column:family_group_number;size:20;not null"`
	FullName          string     `gorm:"column:full_name;size:200;not null"`
	FamilySize        int        `gorm:"column:family_size;not null;default:0"`
	Age               int        `gorm:"column:age;not null"`
	Gender            string     `gorm:"column:gender;size:10;not null"`
	CountryOfOrigin   string     `gorm:"column:country_of_origin;size:100;not null"`
	LegalStatus       string     `gorm:"column:legal_status;size:50;not null"`
	LocationAddress   string     `gorm:"column:location_address;size:100;not null"`
	DateOfBirth       string     `gorm:"column:date_of_birth;size:20;not null"`
	RegistrationDate  string     `gorm:"column:registration_date;size:20;not null"`
	IssuedNumber      *string    `gorm:"column:nssf_number;size:32"`
	UpdatedAt         *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (caseRow) TableName() string {
	return "refugees"
}

func caseRowFromModel(c *models.Case) caseRow {
	row := caseRow{
		IndividualNumber:  c.IndividualNumber,
		ProcessStatus:     c.ProcessStatus.String(),
		FamilyGroupNumber: c.FamilyGroupNumber,
		FullName:          c.FullName,
		FamilySize:        c.FamilySize,
		Age:               c.Age,
		Gender:            c.Gender,
		CountryOfOrigin:   c.CountryOfOrigin,
		LegalStatus:       c.LegalStatus.String(),
		LocationAddress:   c.LocationAddress,
		DateOfBirth:       c.DateOfBirth,
		RegistrationDate:  c.RegistrationDate,
	}
	if c.HasIssuedNumber() {
		issued := c.IssuedNumber
		row.IssuedNumber = &issued
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt.UTC()
		row.UpdatedAt = &updated
	}
	return row
}

func (r caseRow) toModel() (*models.Case, error) {
	c := &models.Case{
		IndividualNumber:  r.IndividualNumber,
		FamilyGroupNumber: r.FamilyGroupNumber,
		FullName:          r.FullName,
		FamilySize:        r.FamilySize,
		Age:               r.Age,
		Gender:            r.Gender,
		CountryOfOrigin:   r.CountryOfOrigin,
		LocationAddress:   r.LocationAddress,
		DateOfBirth:       r.DateOfBirth,
		RegistrationDate:  r.RegistrationDate,
	}
	if err := applyStatuses(c, r.LegalStatus, r.ProcessStatus); err != nil {
		return nil, err
	}
	if r.IssuedNumber != nil {
		c.IssuedNumber = *r.IssuedNumber
	}
	if r.UpdatedAt != nil {
		c.UpdatedAt = r.UpdatedAt.UTC()
	}
	return c, nil
}

func toModels(rows []caseRow) ([]*models.Case, error) {
	out := make([]*models.Case, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
