// Package ops resolves which tenant operation a staging record belongs to.
// The account→operations mapping is loaded once per worker tick into a Cache
// passed through the batch loop, so a large backlog never turns into N+1
// lookups and no ambient mutable state is shared across ticks.
package ops

import (
	"context"
	"errors"
	"strings"

	"orderlink/internal/model"
)

// ErrNoOperations means the account is not authorized to write anywhere; the
// record is skipped and left unprocessed.
var ErrNoOperations = errors.New("account has no authorized operations")

// Source is the slice of the store the cache is built from.
type Source interface {
	ListAccountOperations(ctx context.Context, provider model.Provider) (map[string][]model.Operation, error)
}

// Cache is an immutable per-tick snapshot of the account→operations mapping.
type Cache struct {
	byAccount map[string][]model.Operation
}

// BuildCache loads the provider's full mapping in one query.
func BuildCache(ctx context.Context, src Source, provider model.Provider) (*Cache, error) {
	m, err := src.ListAccountOperations(ctx, provider)
	if err != nil {
		return nil, err
	}
	return &Cache{byAccount: m}, nil
}

// OperationsFor returns the operations the account may write into.
func (c *Cache) OperationsFor(accountID string) []model.Operation {
	return c.byAccount[accountID]
}

// Resolve picks the operation for a record: the one whose order-number prefix
// is a prefix of the hint, else the first authorized operation as an explicit
// degraded-confidence fallback (fellBack=true so the caller can log it).
func (c *Cache) Resolve(accountID, orderNumberHint string) (op model.Operation, fellBack bool, err error) {
	authorized := c.byAccount[accountID]
	if len(authorized) == 0 {
		return model.Operation{}, false, ErrNoOperations
	}
	hint := strings.TrimSpace(orderNumberHint)
	if hint != "" {
		for _, o := range authorized {
			if o.OrderNumberPrefix != "" && strings.HasPrefix(hint, o.OrderNumberPrefix) {
				return o, false, nil
			}
		}
	}
	return authorized[0], true, nil
}
