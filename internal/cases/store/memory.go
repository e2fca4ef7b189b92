package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"caseverify/internal/cases/models"
	"caseverify/pkg/platform/sentinel"
)

// InMemoryCaseStore keeps cases in a map guarded by a mutex.
// Execute holds the write lock for the whole validate-then-mutate cycle.
type InMemoryCaseStore struct {
	mu     sync.RWMutex
	cases  map[string]*models.Case
	issued map[string]string // issued number -> individual number
}

// NewInMemoryCaseStore creates an empty in-memory store.
func NewInMemoryCaseStore() *InMemoryCaseStore {
	return &InMemoryCaseStore{
		cases:  make(map[string]*models.Case),
		issued: make(map[string]string),
	}
}

// Create inserts new cases. The batch is rejected as a whole when any
// individual or issued number collides.
func (s *InMemoryCaseStore) Create(_ context.Context, cases ...*models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(cases))
	for _, c := range cases {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := s.cases[c.IndividualNumber]; dup {
			return fmt.Errorf("individual number %s: %w", c.IndividualNumber, sentinel.ErrConflict)
		}
		if _, dup := seen[c.IndividualNumber]; dup {
			return fmt.Errorf("individual number %s: %w", c.IndividualNumber, sentinel.ErrConflict)
		}
		seen[c.IndividualNumber] = struct{}{}
		if c.HasIssuedNumber() {
			if _, dup := s.issued[c.IssuedNumber]; dup {
				return fmt.Errorf("issued number %s: %w", c.IssuedNumber, sentinel.ErrConflict)
			}
		}
	}
	for _, c := range cases {
		s.cases[c.IndividualNumber] = c.Clone()
		if c.HasIssuedNumber() {
			s.issued[c.IssuedNumber] = c.IndividualNumber
		}
	}
	return nil
}

func (s *InMemoryCaseStore) FindByIndividualNumber(_ context.Context, individualNumber string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[individualNumber]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// Execute atomically validates and mutates a case under lock.
// If validate returns an error, the case is not mutated and the error is returned.
func (s *InMemoryCaseStore) Execute(ctx context.Context, individualNumber string, validate func(*models.Case) error, mutate func(*models.Case)) (*models.Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cases[individualNumber]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)

	if err := checkLifecycleWrite(current, working); err != nil {
		return nil, err
	}
	if working.HasIssuedNumber() && !current.HasIssuedNumber() {
		if owner, taken := s.issued[working.IssuedNumber]; taken && owner != working.IndividualNumber {
			return nil, fmt.Errorf("issued number %s: %w", working.IssuedNumber, sentinel.ErrConflict)
		}
		s.issued[working.IssuedNumber] = working.IndividualNumber
	}

	s.cases[individualNumber] = working
	return working.Clone(), nil
}

func (s *InMemoryCaseStore) IssuedNumberExists(_ context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.issued[number]
	return ok, nil
}

// ListIssued returns every case holding an issued number, ordered by individual number.
func (s *InMemoryCaseStore) ListIssued(_ context.Context) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Case, 0, len(s.issued))
	for _, individual := range s.issued {
		out = append(out, s.cases[individual].Clone())
	}
	sortByIndividualNumber(out)
	return out, nil
}

// List returns up to limit cases ordered by individual number.
func (s *InMemoryCaseStore) List(_ context.Context, limit int) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c.Clone())
	}
	sortByIndividualNumber(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetCountryOfOrigin rewrites country_of_origin on every case, or only on
// cases currently from `from` when it is non-empty.
func (s *InMemoryCaseStore) SetCountryOfOrigin(_ context.Context, country, from string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, c := range s.cases {
		if from != "" && !strings.EqualFold(c.CountryOfOrigin, from) {
			continue
		}
		c.CountryOfOrigin = country
		n++
	}
	return n, nil
}

func (s *InMemoryCaseStore) Close() error {
	return nil
}

// Ping always succeeds; the store has no connection to lose.
func (s *InMemoryCaseStore) Ping(context.Context) error {
	return nil
}

func sortByIndividualNumber(cases []*models.Case) {
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].IndividualNumber < cases[j].IndividualNumber
	})
}
