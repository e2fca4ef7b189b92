package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"caseverify/internal/cases/models"
	"caseverify/internal/platform/config"
	"caseverify/internal/platform/postgres"
)

// Store is the surface every backend provides.
type Store interface {
	Create(ctx context.Context, cases ...*models.Case) error
	FindByIndividualNumber(ctx context.Context, individualNumber string) (*models.Case, error)
	Execute(ctx context.Context, individualNumber string, validate func(*models.Case) error, mutate func(*models.Case)) (*models.Case, error)
	IssuedNumberExists(ctx context.Context, number string) (bool, error)
	ListIssued(ctx context.Context) ([]*models.Case, error)
	List(ctx context.Context, limit int) ([]*models.Case, error)
	SetCountryOfOrigin(ctx context.Context, country, from string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*InMemoryCaseStore)(nil)
	_ Store = (*SQLStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Open returns the backend selected by cfg with its schema in place.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return NewInMemoryCaseStore(), nil
	case config.StoreSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case config.StorePostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s := NewPostgres(db, logger)
		schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.EnsureSchema(schemaCtx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
