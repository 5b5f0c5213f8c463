package model

import "time"

// Provider identifies a fulfillment/carrier integration. The set is closed:
// worker and matcher wiring is selected per provider at construction time.
type Provider string

const (
	ProviderCourier   Provider = "courier"
	ProviderWarehouse Provider = "warehouse"
	ProviderDigital   Provider = "digital"
)

// Providers lists every known provider in a stable order.
func Providers() []Provider {
	return []Provider{ProviderCourier, ProviderWarehouse, ProviderDigital}
}

// Status is the canonical order status shared across all providers.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusReturned   Status = "returned"
	StatusCancelled  Status = "cancelled"
)

// StagingRecord is a provider-native delivery/fulfillment record landed into
// the staging table before reconciliation. Rows are never deleted; they double
// as the ingestion audit trail. ProcessedToOrders is the sole idempotence
// marker: it transitions false->true at most once, and only the provider's
// linking worker flips it.
type StagingRecord struct {
	ID                string    `json:"id"`
	Provider          Provider  `json:"provider"`
	ProviderRecordID  string    `json:"providerRecordId"`
	AccountID         string    `json:"accountId"`
	OrderNumberHint   string    `json:"orderNumberHint,omitempty"`
	CustomerName      string    `json:"customerName,omitempty"`
	CustomerPhone     string    `json:"customerPhone,omitempty"`
	CustomerEmail     string    `json:"customerEmail,omitempty"`
	CustomerCity      string    `json:"customerCity,omitempty"`
	Status            string    `json:"status,omitempty"` // provider vocabulary, see internal/status
	TrackingCode      string    `json:"trackingCode,omitempty"`
	Value             string    `json:"value,omitempty"` // carrier-reported total, as sent
	RawPayload        []byte    `json:"rawPayload,omitempty"`
	ProcessedToOrders bool      `json:"processedToOrders"`
	LinkedOrderID     string    `json:"linkedOrderId,omitempty"`
	CreatedAt         time.Time `json:"createdAt,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt,omitempty"`
}

// CanonicalOrder is the tenant's authoritative sales order. Orders are created
// by the sales-platform ingestion path; the reconciliation engine only reads
// them and applies the carrier-owned fields (status, tracking, provider claim).
type CanonicalOrder struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenantId"`
	StoreID          string     `json:"storeId,omitempty"`
	OperationID      string     `json:"operationId"`
	OrderNumber      string     `json:"orderNumber,omitempty"`
	CustomerName     string     `json:"customerName,omitempty"`
	CustomerPhone    string     `json:"customerPhone,omitempty"`
	CustomerEmail    string     `json:"customerEmail,omitempty"`
	CustomerCity     string     `json:"customerCity,omitempty"`
	Total            float64    `json:"total,omitempty"`
	Status           Status     `json:"status"`
	TrackingNumber   string     `json:"trackingNumber,omitempty"`
	CarrierImported  bool       `json:"carrierImported"`
	CarrierOrderID   string     `json:"carrierOrderId,omitempty"`
	Provider         string     `json:"provider,omitempty"` // owning provider; at most one at a time
	ProviderData     []byte     `json:"providerData,omitempty"`
	LastStatusUpdate *time.Time `json:"lastStatusUpdate,omitempty"`
	CreatedAt        time.Time  `json:"createdAt,omitempty"`
}

// CarrierUpdate is the set of fields a linking worker may write to an order.
// Anything else on the order (customer identity, line items, payment data)
// belongs to the sales ingestion path and is off-limits here.
type CarrierUpdate struct {
	Provider       Provider `json:"provider"`
	CarrierOrderID string   `json:"carrierOrderId"`
	Status         Status   `json:"status"`
	TrackingNumber string   `json:"trackingNumber,omitempty"`
	ProviderData   []byte   `json:"providerData,omitempty"`
}

// Operation is one tenant operation an account may write into. The order
// number prefix routes records to the right operation when an account serves
// several.
type Operation struct {
	ID                string `json:"id" yaml:"id"`
	StoreID           string `json:"storeId,omitempty" yaml:"storeId"`
	Name              string `json:"name,omitempty" yaml:"name"`
	OrderNumberPrefix string `json:"orderNumberPrefix,omitempty" yaml:"orderNumberPrefix"`
}

// Scope bounds the candidate order pool for a match. The tier matcher uses
// (StoreID, OperationID); the identity matcher leaves StoreID empty and scans
// the whole operation.
type Scope struct {
	StoreID     string
	OperationID string
}

// MatchResult is the matching engine's decision for one staging record. It is
// never persisted; only the order update it leads to is.
type MatchResult struct {
	Matched   bool
	Order     CanonicalOrder
	Tier      int
	Method    string
	Ambiguous bool // some tier saw >1 candidate and refused to guess
}

// RunSummary is the per-tick tally a linking worker logs and exposes.
type RunSummary struct {
	Provider    Provider  `json:"provider"`
	StartedAt   time.Time `json:"startedAt"`
	DurationMs  int64     `json:"durationMs"`
	Processed   int       `json:"processed"`
	Updated     int       `json:"updated"`
	Unmatched   int       `json:"unmatched"`
	Ambiguous   int       `json:"ambiguous"`
	Conflicts   int       `json:"conflicts"`
	NoOperation int       `json:"noOperation"`
	Skipped     int       `json:"skipped"`
}
