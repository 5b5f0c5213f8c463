package match

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"orderlink/internal/model"
	"orderlink/internal/normalize"
)

// IdentityMatcher is the 3-tier matcher used for warehouse/fulfillment and
// digital-platform reconciliation. It is operation-scoped: exact order number
// first, then customer email, then a generic phone comparison over a bounded
// window of the operation's most recent orders.
type IdentityMatcher struct {
	Pool Pool
	Log  *zap.Logger
	// RecentWindow bounds the phone-tier scan.
	RecentWindow int
}

func NewIdentityMatcher(pool Pool, log *zap.Logger) *IdentityMatcher {
	return &IdentityMatcher{Pool: pool, Log: log, RecentWindow: 200}
}

func (m *IdentityMatcher) Match(ctx context.Context, rec model.StagingRecord, scope model.Scope) (model.MatchResult, error) {
	opScope := model.Scope{OperationID: scope.OperationID}
	ambiguous := false

	// Tier 1: exact order number within the operation.
	if n := strings.TrimSpace(rec.OrderNumberHint); n != "" {
		o, ok, err := m.Pool.OrderByNumber(ctx, opScope.OperationID, n)
		if err != nil {
			return model.MatchResult{}, fmt.Errorf("order number lookup: %w", err)
		}
		if ok {
			return matched(o, 1, "order_number", false), nil
		}
	}

	// Tier 2: customer email, only when the record carries one.
	if email := strings.ToLower(strings.TrimSpace(rec.CustomerEmail)); email != "" {
		hits, err := m.Pool.OrdersByEmail(ctx, opScope.OperationID, email)
		if err != nil {
			return model.MatchResult{}, fmt.Errorf("email lookup: %w", err)
		}
		switch len(hits) {
		case 0:
		case 1:
			return matched(hits[0], 2, "email", false), nil
		default:
			ambiguous = true
			m.Log.Warn("ambiguous email match, refusing to guess",
				append(fieldsOf(rec), zap.Int("candidates", len(hits)))...)
		}
	}

	// Tier 3: generic phone comparison over the recent-order window.
	if normalize.PhoneGeneric(rec.CustomerPhone) != "" {
		recent, err := m.Pool.CandidateOrders(ctx, opScope, m.RecentWindow)
		if err != nil {
			return model.MatchResult{}, fmt.Errorf("recent order scan: %w", err)
		}
		var hits []model.CanonicalOrder
		for _, o := range recent {
			if normalize.PhonesMatch(rec.CustomerPhone, o.CustomerPhone) {
				hits = append(hits, o)
			}
		}
		switch len(hits) {
		case 0:
		case 1:
			return matched(hits[0], 3, "phone", ambiguous), nil
		default:
			ambiguous = true
			m.Log.Warn("ambiguous phone match, refusing to guess",
				append(fieldsOf(rec), zap.Int("candidates", len(hits)))...)
		}
	}

	return model.MatchResult{Ambiguous: ambiguous}, nil
}
