package store

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orderlink/internal/model"
	"orderlink/internal/normalize"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set and by
// tests. All mutation happens under one mutex, which also makes the carrier
// claim atomic.
type Memory struct {
	mu       sync.Mutex
	staging  map[string]*model.StagingRecord // id -> record
	stageKey map[string]string               // provider/account/providerRecordId -> id
	stageSeq []string                        // ids in insertion order, per fetch-order guarantee
	orders   map[string]*model.CanonicalOrder
	orderSeq []string
	accounts map[model.Provider]map[string][]model.Operation
}

func NewMemory() *Memory {
	return &Memory{
		staging:  map[string]*model.StagingRecord{},
		stageKey: map[string]string{},
		orders:   map[string]*model.CanonicalOrder{},
		accounts: map[model.Provider]map[string][]model.Operation{},
	}
}

func stagingKey(p model.Provider, accountID, providerRecordID string) string {
	return string(p) + "/" + accountID + "/" + providerRecordID
}

func (m *Memory) UpsertStagingRecord(ctx context.Context, rec model.StagingRecord) (model.StagingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	key := stagingKey(rec.Provider, rec.AccountID, rec.ProviderRecordID)
	if id, ok := m.stageKey[key]; ok {
		existing := m.staging[id]
		changed := !bytes.Equal(existing.RawPayload, rec.RawPayload)
		rec.ID = id
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = now
		// the processed flag and link belong to the linking worker; a changed
		// payload re-opens the record for linking
		rec.LinkedOrderID = existing.LinkedOrderID
		rec.ProcessedToOrders = existing.ProcessedToOrders && !changed
		*existing = rec
		return rec, nil
	}
	rec.ID = uuid.New().String()
	rec.ProcessedToOrders = false
	rec.LinkedOrderID = ""
	rec.CreatedAt = now
	rec.UpdatedAt = now
	cp := rec
	m.staging[rec.ID] = &cp
	m.stageKey[key] = rec.ID
	m.stageSeq = append(m.stageSeq, rec.ID)
	return rec, nil
}

func (m *Memory) FetchUnprocessedStaging(ctx context.Context, provider model.Provider, limit int) ([]model.StagingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.StagingRecord{}
	for _, id := range m.stageSeq {
		r := m.staging[id]
		if r.Provider != provider || r.ProcessedToOrders {
			continue
		}
		out = append(out, *r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkStagingLinked(ctx context.Context, provider model.Provider, stagingID, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.staging[stagingID]
	if !ok || r.Provider != provider {
		return ErrNotFound
	}
	r.ProcessedToOrders = true
	r.LinkedOrderID = orderID
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) inScope(o *model.CanonicalOrder, scope model.Scope) bool {
	if scope.OperationID != "" && o.OperationID != scope.OperationID {
		return false
	}
	if scope.StoreID != "" && o.StoreID != scope.StoreID {
		return false
	}
	return true
}

func (m *Memory) OrderByCarrierID(ctx context.Context, scope model.Scope, provider model.Provider, carrierOrderID string) (model.CanonicalOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if carrierOrderID == "" {
		return model.CanonicalOrder{}, false, nil
	}
	for _, id := range m.orderSeq {
		o := m.orders[id]
		if m.inScope(o, scope) && o.Provider == string(provider) && o.CarrierOrderID == carrierOrderID {
			return *o, true, nil
		}
	}
	return model.CanonicalOrder{}, false, nil
}

func (m *Memory) OrdersByPhoneSuffix(ctx context.Context, scope model.Scope, suffix string) ([]model.CanonicalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CanonicalOrder{}
	if suffix == "" {
		return out, nil
	}
	for _, id := range m.orderSeq {
		o := m.orders[id]
		if !m.inScope(o, scope) {
			continue
		}
		if n := normalize.Phone(o.CustomerPhone); n != "" && strings.HasSuffix(n, suffix) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *Memory) OrderByNumber(ctx context.Context, operationID, orderNumber string) (model.CanonicalOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.orderSeq {
		o := m.orders[id]
		if o.OperationID == operationID && o.OrderNumber != "" && o.OrderNumber == orderNumber {
			return *o, true, nil
		}
	}
	return model.CanonicalOrder{}, false, nil
}

func (m *Memory) OrdersByEmail(ctx context.Context, operationID, email string) ([]model.CanonicalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CanonicalOrder{}
	for _, id := range m.orderSeq {
		o := m.orders[id]
		if o.OperationID == operationID && o.CustomerEmail != "" && strings.EqualFold(o.CustomerEmail, email) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *Memory) CandidateOrders(ctx context.Context, scope model.Scope, limit int) ([]model.CanonicalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.CanonicalOrder{}
	for i := len(m.orderSeq) - 1; i >= 0 && len(out) < limit; i-- {
		o := m.orders[m.orderSeq[i]]
		if m.inScope(o, scope) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *Memory) GetOrder(ctx context.Context, orderID string) (model.CanonicalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return model.CanonicalOrder{}, ErrNotFound
	}
	return *o, nil
}

func (m *Memory) ApplyCarrierUpdate(ctx context.Context, orderID string, upd model.CarrierUpdate) (model.CanonicalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return model.CanonicalOrder{}, ErrNotFound
	}
	if o.Provider != "" && o.Provider != string(upd.Provider) {
		return model.CanonicalOrder{}, ErrOwnershipConflict
	}
	now := time.Now().UTC()
	o.Status = upd.Status
	if upd.TrackingNumber != "" {
		o.TrackingNumber = upd.TrackingNumber
	}
	o.CarrierImported = true
	o.CarrierOrderID = upd.CarrierOrderID
	o.Provider = string(upd.Provider)
	if len(upd.ProviderData) > 0 {
		o.ProviderData = upd.ProviderData
	}
	o.LastStatusUpdate = &now
	return *o, nil
}

func (m *Memory) ListAccountOperations(ctx context.Context, provider model.Provider) (map[string][]model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]model.Operation{}
	for acc, ops := range m.accounts[provider] {
		out[acc] = append([]model.Operation(nil), ops...)
	}
	return out, nil
}

// SeedOrder inserts a canonical order, standing in for the out-of-scope
// sales-platform ingestion path. Test and demo helper.
func (m *Memory) SeedOrder(o model.CanonicalOrder) model.CanonicalOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = model.StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	cp := o
	m.orders[o.ID] = &cp
	m.orderSeq = append(m.orderSeq, o.ID)
	return o
}

// SeedAccountOperations registers an account→operations authorization row.
func (m *Memory) SeedAccountOperations(provider model.Provider, accountID string, ops ...model.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accounts[provider] == nil {
		m.accounts[provider] = map[string][]model.Operation{}
	}
	m.accounts[provider][accountID] = append(m.accounts[provider][accountID], ops...)
}
