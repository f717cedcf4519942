package generations

import (
	"context"
	"time"
)

// Repo persists the generation ledger.
type Repo interface {
	Create(ctx context.Context, g Generation) error
	Get(ctx context.Context, id string) (Generation, error)
	List(ctx context.Context, filter ListFilter) ([]Generation, error)
	MarkDeletedBefore(ctx context.Context, cutoff, at time.Time) (int64, error)
}
