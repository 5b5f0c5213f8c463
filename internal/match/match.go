// Package match resolves staging records to canonical orders. Two strategies
// coexist: a 4-tier deterministic matcher for the carrier-lead feed (scoped to
// store+operation) and a 3-tier identity matcher for the fulfillment family
// (scoped to the operation). Both share one rule: a tie is never guessed at.
// An ambiguous tier is treated as no-match so the record stays eligible for
// retry once order ingestion catches up.
package match

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"orderlink/internal/model"
)

// Pool is the candidate order pool, implemented by the store. Every query is
// scoped so one tenant operation can never match into another.
type Pool interface {
	OrderByCarrierID(ctx context.Context, scope model.Scope, provider model.Provider, carrierOrderID string) (model.CanonicalOrder, bool, error)
	OrdersByPhoneSuffix(ctx context.Context, scope model.Scope, suffix string) ([]model.CanonicalOrder, error)
	OrderByNumber(ctx context.Context, operationID, orderNumber string) (model.CanonicalOrder, bool, error)
	OrdersByEmail(ctx context.Context, operationID, email string) ([]model.CanonicalOrder, error)
	// CandidateOrders lists the scope's most recent orders, newest first.
	CandidateOrders(ctx context.Context, scope model.Scope, limit int) ([]model.CanonicalOrder, error)
}

// Matcher decides at most one order for a staging record, or reports no match.
type Matcher interface {
	Match(ctx context.Context, rec model.StagingRecord, scope model.Scope) (model.MatchResult, error)
}

const minTokenLen = 3 // name/city shorter than this is too weak to match on

func matched(o model.CanonicalOrder, tier int, method string, ambiguous bool) model.MatchResult {
	return model.MatchResult{Matched: true, Order: o, Tier: tier, Method: method, Ambiguous: ambiguous}
}

// nameContains reports bidirectional substring containment of two already
// normalized strings.
func nameContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func fieldsOf(rec model.StagingRecord) []zap.Field {
	return []zap.Field{
		zap.String("provider", string(rec.Provider)),
		zap.String("recordId", rec.ProviderRecordID),
		zap.String("accountId", rec.AccountID),
	}
}
