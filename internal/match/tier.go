package match

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orderlink/internal/model"
	"orderlink/internal/normalize"
)

// TierMatcher is the 4-tier deterministic matcher used for carrier-lead
// reconciliation. Evaluation order is 4 -> 1 -> 2 -> 3: direct carrier id
// first (unambiguous and cheapest), then phone suffix, then name+value, then
// name+city. The first tier producing exactly one hit wins.
type TierMatcher struct {
	Pool           Pool
	Log            *zap.Logger
	PriceTolerance float64
	CandidateLimit int
}

func NewTierMatcher(pool Pool, log *zap.Logger) *TierMatcher {
	return &TierMatcher{Pool: pool, Log: log, PriceTolerance: 1, CandidateLimit: 500}
}

func (m *TierMatcher) Match(ctx context.Context, rec model.StagingRecord, scope model.Scope) (model.MatchResult, error) {
	ambiguous := false

	// Tier 4: direct carrier id.
	if rec.ProviderRecordID != "" {
		o, ok, err := m.Pool.OrderByCarrierID(ctx, scope, rec.Provider, rec.ProviderRecordID)
		if err != nil {
			return model.MatchResult{}, fmt.Errorf("carrier id lookup: %w", err)
		}
		if ok {
			return matched(o, 4, "carrier_id", false), nil
		}
	}

	// Tier 1: phone suffix.
	if suffix := normalize.Phone(rec.CustomerPhone); suffix != "" {
		hits, err := m.Pool.OrdersByPhoneSuffix(ctx, scope, suffix)
		if err != nil {
			return model.MatchResult{}, fmt.Errorf("phone lookup: %w", err)
		}
		switch len(hits) {
		case 0:
		case 1:
			return matched(hits[0], 1, "phone", false), nil
		default:
			ambiguous = true
			m.Log.Warn("ambiguous phone match, refusing to guess",
				append(fieldsOf(rec), zap.Int("candidates", len(hits)))...)
		}
	}

	candidates, err := m.Pool.CandidateOrders(ctx, scope, m.CandidateLimit)
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("candidate scan: %w", err)
	}
	name := normalize.Name(rec.CustomerName)

	// Tier 2: name + monetary value.
	if value, okValue := normalize.ParsePrice(rec.Value); okValue && len(name) >= minTokenLen {
		var hits []model.CanonicalOrder
		for _, o := range candidates {
			if nameContains(name, normalize.Name(o.CustomerName)) &&
				normalize.PricesClose(value, o.Total, m.PriceTolerance) {
				hits = append(hits, o)
			}
		}
		switch len(hits) {
		case 0:
		case 1:
			return matched(hits[0], 2, "name_value", ambiguous), nil
		default:
			ambiguous = true
			m.Log.Warn("ambiguous name+value match, refusing to guess",
				append(fieldsOf(rec), zap.Int("candidates", len(hits)))...)
		}
	}

	// Tier 3: name + city.
	if city := normalize.City(rec.CustomerCity); len(name) >= minTokenLen && len(city) >= minTokenLen {
		var hits []model.CanonicalOrder
		for _, o := range candidates {
			if nameContains(name, normalize.Name(o.CustomerName)) &&
				nameContains(city, normalize.City(o.CustomerCity)) {
				hits = append(hits, o)
			}
		}
		switch len(hits) {
		case 0:
		case 1:
			return matched(hits[0], 3, "name_city", ambiguous), nil
		default:
			ambiguous = true
			m.Log.Warn("ambiguous name+city match, refusing to guess",
				append(fieldsOf(rec), zap.Int("candidates", len(hits)))...)
		}
	}

	// No tier produced a unique hit. Not an error: the staging backlog often
	// races ahead of the canonical-order feed.
	return model.MatchResult{Ambiguous: ambiguous}, nil
}
