// Package worker runs the per-provider linking loop: page through
// unprocessed staging rows, resolve the tenant operation, ask the matching
// engine for the one order the record belongs to, and idempotently apply the
// carrier update. Failures are contained at the smallest possible scope
// (record > batch > tick) and always fail toward "retry next tick".
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"orderlink/internal/events"
	"orderlink/internal/match"
	"orderlink/internal/metrics"
	"orderlink/internal/model"
	"orderlink/internal/ops"
	"orderlink/internal/status"
	"orderlink/internal/store"
)

// ErrRunning is returned when a tick fires while the previous invocation is
// still in flight. The scheduler treats it as a no-op.
var ErrRunning = errors.New("worker already running")

// Worker links one provider's staging records to canonical orders.
type Worker struct {
	Provider model.Provider
	Store    store.Store
	Matcher  match.Matcher
	Broker   events.Broker
	Log      *zap.Logger

	BatchSize     int
	RecordTimeout time.Duration
	// Drain repeats the batch fetch until the backlog is empty within one
	// invocation instead of spreading it across ticks.
	Drain bool
	// ScopeFor derives the candidate-pool scope from the resolved operation:
	// store+operation for the tier matcher, operation-only for the identity
	// matcher.
	ScopeFor func(op model.Operation) model.Scope

	running atomic.Bool
	mu      sync.Mutex
	last    model.RunSummary
}

// New wires a worker with the provider's default scope rule.
func New(provider model.Provider, st store.Store, m match.Matcher, broker events.Broker, log *zap.Logger) *Worker {
	w := &Worker{
		Provider:      provider,
		Store:         st,
		Matcher:       m,
		Broker:        broker,
		Log:           log.Named(string(provider)),
		BatchSize:     100,
		RecordTimeout: 15 * time.Second,
	}
	if provider == model.ProviderCourier {
		w.ScopeFor = func(op model.Operation) model.Scope {
			return model.Scope{StoreID: op.StoreID, OperationID: op.ID}
		}
	} else {
		w.ScopeFor = func(op model.Operation) model.Scope {
			return model.Scope{OperationID: op.ID}
		}
	}
	return w
}

func (w *Worker) Name() string { return "link-" + string(w.Provider) }

// LastSummary returns the most recent completed tick's tally.
func (w *Worker) LastSummary() model.RunSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// RunOnce executes one tick. Overlapping invocations are rejected with
// ErrRunning; the guard is released whatever happens below it.
func (w *Worker) RunOnce(ctx context.Context) (model.RunSummary, error) {
	if !w.running.CompareAndSwap(false, true) {
		w.Log.Debug("tick skipped, previous run still in progress")
		return model.RunSummary{}, ErrRunning
	}
	defer w.running.Store(false)

	sum := model.RunSummary{Provider: w.Provider, StartedAt: time.Now().UTC()}

	cache, err := ops.BuildCache(ctx, w.Store, w.Provider)
	if err != nil {
		// tick aborted; next scheduled tick retries
		w.Log.Error("account cache build failed, aborting tick", zap.Error(err))
		return sum, fmt.Errorf("build account cache: %w", err)
	}

	for {
		batch, err := w.Store.FetchUnprocessedStaging(ctx, w.Provider, w.BatchSize)
		if err != nil {
			w.Log.Error("staging fetch failed, aborting tick", zap.Error(err))
			return sum, fmt.Errorf("fetch staging: %w", err)
		}
		linked := sum.Updated
		for _, rec := range batch {
			w.processRecord(ctx, cache, rec, &sum)
		}
		if !w.Drain || len(batch) < w.BatchSize {
			break
		}
		// Unmatched and conflicted rows stay unprocessed, so a pass that
		// links nothing would refetch the identical batch. Leave the rest
		// to the next tick.
		if sum.Updated == linked {
			break
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
	}

	sum.DurationMs = time.Since(sum.StartedAt).Milliseconds()
	metrics.TickDuration.WithLabelValues(string(w.Provider)).Observe(float64(sum.DurationMs) / 1000)
	w.Log.Info("tick complete",
		zap.Int("processed", sum.Processed),
		zap.Int("updated", sum.Updated),
		zap.Int("unmatched", sum.Unmatched),
		zap.Int("ambiguous", sum.Ambiguous),
		zap.Int("conflicts", sum.Conflicts),
		zap.Int("noOperation", sum.NoOperation),
		zap.Int("skipped", sum.Skipped),
		zap.Int64("durationMs", sum.DurationMs),
	)
	w.mu.Lock()
	w.last = sum
	w.mu.Unlock()
	return sum, nil
}

// Start runs one tick immediately, then on every interval until Stop is
// closed.
func (w *Worker) Start(interval time.Duration, stop <-chan struct{}) {
	go func() {
		_, _ = w.RunOnce(context.Background())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = w.RunOnce(context.Background())
			}
		}
	}()
}

func (w *Worker) count(sum *model.RunSummary, outcome string) {
	metrics.RecordsProcessed.WithLabelValues(string(w.Provider), outcome).Inc()
	switch outcome {
	case "linked":
		sum.Updated++
	case "unmatched":
		sum.Unmatched++
	case "conflict":
		sum.Conflicts++
	case "no_operation":
		sum.NoOperation++
	case "skipped":
		sum.Skipped++
	}
}

// processRecord handles one staging row. Panics and errors are contained
// here: a bad record is counted and retried next tick, never aborting the
// batch.
func (w *Worker) processRecord(ctx context.Context, cache *ops.Cache, rec model.StagingRecord, sum *model.RunSummary) {
	sum.Processed++
	log := w.Log.With(
		zap.String("recordId", rec.ProviderRecordID),
		zap.String("accountId", rec.AccountID),
	)
	defer func() {
		if r := recover(); r != nil {
			w.count(sum, "skipped")
			log.Error("record processing panicked", zap.Any("panic", r))
		}
	}()

	rctx := ctx
	if w.RecordTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, w.RecordTimeout)
		defer cancel()
	}

	op, fellBack, err := cache.Resolve(rec.AccountID, rec.OrderNumberHint)
	if errors.Is(err, ops.ErrNoOperations) {
		w.count(sum, "no_operation")
		log.Warn("account has no authorized operations, record skipped")
		return
	}
	if fellBack {
		log.Warn("no operation prefix matched order number hint, using first authorized operation",
			zap.String("hint", rec.OrderNumberHint), zap.String("operationId", op.ID))
	}

	res, err := w.Matcher.Match(rctx, rec, w.ScopeFor(op))
	if err != nil {
		w.count(sum, "skipped")
		log.Warn("match failed, will retry next tick", zap.Error(err))
		return
	}
	if res.Ambiguous {
		sum.Ambiguous++
		metrics.RecordsProcessed.WithLabelValues(string(w.Provider), "ambiguous").Inc()
	}
	if !res.Matched {
		// Deliberate: never create an order from carrier data alone. The row
		// stays unprocessed and is re-evaluated every tick until the sales
		// feed catches up.
		w.count(sum, "unmatched")
		return
	}

	mapped, known := status.Map(w.Provider, rec.Status)
	if !known && rec.Status != "" {
		log.Warn("unrecognized provider status, defaulting to pending", zap.String("status", rec.Status))
	}
	order, err := w.Store.ApplyCarrierUpdate(rctx, res.Order.ID, model.CarrierUpdate{
		Provider:       w.Provider,
		CarrierOrderID: rec.ProviderRecordID,
		Status:         mapped,
		TrackingNumber: rec.TrackingCode,
		ProviderData:   rec.RawPayload,
	})
	if errors.Is(err, store.ErrOwnershipConflict) {
		w.count(sum, "conflict")
		log.Warn("order already claimed by another provider, update skipped",
			zap.String("orderId", res.Order.ID))
		return
	}
	if err != nil {
		w.count(sum, "skipped")
		log.Warn("order update failed, will retry next tick", zap.Error(err))
		return
	}

	if err := w.Store.MarkStagingLinked(rctx, w.Provider, rec.ID, order.ID); err != nil {
		// the order update is idempotent, so leaving the row unprocessed and
		// retrying is safe
		w.count(sum, "skipped")
		log.Warn("failed to mark staging row processed, will retry next tick", zap.Error(err))
		return
	}

	w.count(sum, "linked")
	metrics.MatchesByTier.WithLabelValues(string(w.Provider), strconv.Itoa(res.Tier), res.Method).Inc()
	if w.Broker != nil {
		evtType := "order.linked"
		if rec.LinkedOrderID != "" {
			evtType = "order.updated"
		}
		w.Broker.Publish(events.Event{
			Type:      evtType,
			Provider:  w.Provider,
			OrderID:   order.ID,
			StagingID: rec.ID,
			Status:    order.Status,
			Tier:      res.Tier,
			Method:    res.Method,
			TS:        events.Now(),
		})
	}
	log.Info("staging record linked",
		zap.String("orderId", order.ID),
		zap.Int("tier", res.Tier),
		zap.String("method", res.Method),
		zap.String("status", string(order.Status)),
	)
}
