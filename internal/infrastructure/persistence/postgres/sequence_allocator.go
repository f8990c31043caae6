package postgres

import (
	"context"
	"fmt"

	"github.com/bitcollege/registrar/internal/domain/numbering"
)

// SequenceAllocator implements numbering.Allocator on the sequence_counters
// table. Each allocation is a single upsert, so concurrent callers are
// serialized by the row lock and a failed statement issues nothing.
type SequenceAllocator struct {
	conn *Connection
}

// NewSequenceAllocator creates a new SequenceAllocator.
func NewSequenceAllocator(conn *Connection) *SequenceAllocator {
	return &SequenceAllocator{conn: conn}
}

// AllocateNext returns the next number of the category, the seed on first use.
func (a *SequenceAllocator) AllocateNext(ctx context.Context, category numbering.Category) (int64, error) {
	seed, err := category.Seed()
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO sequence_counters (category, next_available_number)
		VALUES ($1, $2 + 1)
		ON CONFLICT (category) DO UPDATE SET
			next_available_number = sequence_counters.next_available_number + 1,
			updated_at = NOW()
		RETURNING next_available_number - 1
	`

	var n int64
	if err := a.conn.QueryRow(ctx, query, string(category), seed).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to allocate %s: %w", category, err)
	}
	return n, nil
}

// Peek returns the number the next allocation would issue without taking it.
func (a *SequenceAllocator) Peek(ctx context.Context, category numbering.Category) (int64, error) {
	seed, err := category.Seed()
	if err != nil {
		return 0, err
	}

	var n int64
	err = a.conn.QueryRow(ctx,
		`SELECT next_available_number FROM sequence_counters WHERE category = $1`,
		string(category),
	).Scan(&n)
	if IsNoRows(err) {
		return seed, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", category, err)
	}
	return n, nil
}

var _ numbering.Allocator = (*SequenceAllocator)(nil)
