// Package ingest pulls provider records into the staging table. Adapters are
// the only writers on the ingestion side of the contract: they upsert by
// (provider, accountId, providerRecordId), never set processedToOrders to
// true, and leave everything downstream to the linking workers.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"orderlink/internal/metrics"
	"orderlink/internal/model"
)

// Client is a provider API client (external system, out of scope here).
// FetchRecords pages through records changed since the given watermark; an
// empty cursor ends the page sequence.
type Client interface {
	FetchRecords(ctx context.Context, since, cursor string) (Page, error)
}

// Page is one page of provider records plus the cursor for the next page.
// Watermark, when the provider supplies one, becomes the since value of the
// next poll.
type Page struct {
	Records   []model.StagingRecord
	Cursor    string
	Watermark string
}

// Sink is the staging-table slice of the store.
type Sink interface {
	UpsertStagingRecord(ctx context.Context, rec model.StagingRecord) (model.StagingRecord, error)
}

// Adapter lands one provider's records into staging.
type Adapter struct {
	Provider model.Provider
	Client   Client
	Sink     Sink
	Limiter  *rate.Limiter
	Log      *zap.Logger

	running atomic.Bool
	since   string
}

func NewAdapter(provider model.Provider, client Client, sink Sink, rps float64, log *zap.Logger) *Adapter {
	if rps <= 0 {
		rps = 5
	}
	return &Adapter{
		Provider: provider,
		Client:   client,
		Sink:     sink,
		Limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		Log:      log.Named("ingest-" + string(provider)),
	}
}

func (a *Adapter) Name() string { return "ingest-" + string(a.Provider) }

// RunOnce pulls every page the provider has for the current watermark.
// Overlapping invocations are no-ops, mirroring the linking workers.
func (a *Adapter) RunOnce(ctx context.Context) (int, error) {
	if !a.running.CompareAndSwap(false, true) {
		a.Log.Debug("poll skipped, previous poll still in progress")
		return 0, nil
	}
	defer a.running.Store(false)

	count, dropped := 0, 0
	cursor, watermark := "", ""
	for {
		if err := a.Limiter.Wait(ctx); err != nil {
			return count, err
		}
		page, err := a.Client.FetchRecords(ctx, a.since, cursor)
		if err != nil {
			return count, fmt.Errorf("fetch page: %w", err)
		}
		if page.Watermark != "" {
			watermark = page.Watermark
		}
		for _, rec := range page.Records {
			rec.Provider = a.Provider
			// the ingestion side must never mark a row processed
			rec.ProcessedToOrders = false
			if _, err := a.Sink.UpsertStagingRecord(ctx, rec); err != nil {
				a.Log.Warn("staging upsert failed, record dropped until next poll",
					zap.String("recordId", rec.ProviderRecordID), zap.Error(err))
				dropped++
				continue
			}
			metrics.IngestedRecords.WithLabelValues(string(a.Provider)).Inc()
			count++
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	// advance only on a clean poll; a dropped record must be refetched
	if watermark != "" && dropped == 0 {
		a.since = watermark
	}
	a.Log.Info("poll complete",
		zap.Int("upserted", count), zap.Int("dropped", dropped), zap.String("since", a.since))
	return count, nil
}

// SetWatermark seeds the incremental-fetch watermark (provider-native format,
// usually a timestamp). After that it advances itself from the watermark each
// clean poll reports.
func (a *Adapter) SetWatermark(since string) { a.since = since }
