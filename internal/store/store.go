package store

import (
	"context"
	"errors"

	"orderlink/internal/model"
)

// Store is the persistence interface used by the reconciliation engine. It
// covers the provider staging tables (owned here), read access to the
// canonical order pool, the atomic carrier claim, and the read-only
// account→operation mapping.
type Store interface {
	// Staging. Upsert key is (provider, accountId, providerRecordId); a
	// changed payload resets processedToOrders to false, ingestion never
	// sets it to true.
	UpsertStagingRecord(ctx context.Context, rec model.StagingRecord) (model.StagingRecord, error)
	FetchUnprocessedStaging(ctx context.Context, provider model.Provider, limit int) ([]model.StagingRecord, error)
	// MarkStagingLinked flips processedToOrders and records the linked order.
	MarkStagingLinked(ctx context.Context, provider model.Provider, stagingID, orderID string) error

	// Candidate order pool (match.Pool).
	OrderByCarrierID(ctx context.Context, scope model.Scope, provider model.Provider, carrierOrderID string) (model.CanonicalOrder, bool, error)
	OrdersByPhoneSuffix(ctx context.Context, scope model.Scope, suffix string) ([]model.CanonicalOrder, error)
	OrderByNumber(ctx context.Context, operationID, orderNumber string) (model.CanonicalOrder, bool, error)
	OrdersByEmail(ctx context.Context, operationID, email string) ([]model.CanonicalOrder, error)
	CandidateOrders(ctx context.Context, scope model.Scope, limit int) ([]model.CanonicalOrder, error)
	GetOrder(ctx context.Context, orderID string) (model.CanonicalOrder, error)

	// ApplyCarrierUpdate atomically claims the order for upd.Provider and
	// applies status/tracking/payload. The write only happens when the order
	// is unclaimed or already owned by the same provider; otherwise
	// ErrOwnershipConflict is returned and the order is untouched.
	ApplyCarrierUpdate(ctx context.Context, orderID string, upd model.CarrierUpdate) (model.CanonicalOrder, error)

	// Account→operation authorization (read-only configuration data).
	ListAccountOperations(ctx context.Context, provider model.Provider) (map[string][]model.Operation, error)
}

var (
	ErrNotFound          = errors.New("not found")
	ErrOwnershipConflict = errors.New("order already claimed by another provider")
)
