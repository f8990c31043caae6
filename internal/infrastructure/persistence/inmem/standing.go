package inmem

import (
	"context"

	"github.com/bitcollege/registrar/internal/domain/standing"
)

// StandingRepository keeps the standing lookup table.
type StandingRepository struct {
	db *DB
}

// NewStandingRepository creates a new StandingRepository.
func NewStandingRepository(db *DB) *StandingRepository {
	return &StandingRepository{db: db}
}

// SeedStandings writes every standing label. Repeated calls are harmless.
func (r *StandingRepository) SeedStandings(_ context.Context, all []standing.Standing) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, s := range all {
		r.db.standings[s.ID()] = s.Label()
	}
	return nil
}

// Labels returns the seeded labels by id.
func (r *StandingRepository) Labels() map[standing.ID]string {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make(map[standing.ID]string, len(r.db.standings))
	for id, label := range r.db.standings {
		out[id] = label
	}
	return out
}
