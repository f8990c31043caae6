package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bitcollege/registrar/internal/domain/standing"
)

// StandingRepository keeps the standings reference table in step with the
// in-process registry.
type StandingRepository struct {
	conn *Connection
}

// NewStandingRepository creates a new StandingRepository.
func NewStandingRepository(conn *Connection) *StandingRepository {
	return &StandingRepository{conn: conn}
}

// SeedStandings upserts one row per standing. Safe to run on every start.
func (r *StandingRepository) SeedStandings(ctx context.Context, all []standing.Standing) error {
	query := `
		INSERT INTO standings (id, label, lower_limit, upper_limit, tuition_rate_factor)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			lower_limit = EXCLUDED.lower_limit,
			upper_limit = EXCLUDED.upper_limit,
			tuition_rate_factor = EXCLUDED.tuition_rate_factor
	`

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range all {
			batch.Queue(query, int(s.ID()), s.Label(), s.LowerLimit(), s.UpperLimit(), s.BaseTuitionFactor())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to seed standings: %w", err)
		}
		return nil
	})
}
