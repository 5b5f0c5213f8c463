package store

import (
	"context"
	"errors"
	"testing"

	"orderlink/internal/model"
)

func TestUpsertStagingIdempotentOnSamePayload(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rec := model.StagingRecord{
		Provider:         model.ProviderCourier,
		AccountID:        "acc1",
		ProviderRecordID: "L-1",
		RawPayload:       []byte(`{"v":1}`),
	}
	first, err := m.UpsertStagingRecord(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.MarkStagingLinked(ctx, model.ProviderCourier, first.ID, "order-1"); err != nil {
		t.Fatal(err)
	}

	// same payload again: processed flag must survive
	again, err := m.UpsertStagingRecord(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Fatalf("upsert created a second row: %s vs %s", again.ID, first.ID)
	}
	if !again.ProcessedToOrders || again.LinkedOrderID != "order-1" {
		t.Fatalf("processed state lost on unchanged upsert: %+v", again)
	}

	// changed payload reopens the record for linking
	rec.RawPayload = []byte(`{"v":2}`)
	reopened, err := m.UpsertStagingRecord(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ProcessedToOrders {
		t.Fatal("changed payload must reset processedToOrders")
	}
}

func TestFetchUnprocessedExcludesProcessed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a, _ := m.UpsertStagingRecord(ctx, model.StagingRecord{Provider: model.ProviderCourier, AccountID: "acc", ProviderRecordID: "A"})
	b, _ := m.UpsertStagingRecord(ctx, model.StagingRecord{Provider: model.ProviderCourier, AccountID: "acc", ProviderRecordID: "B"})
	_, _ = m.UpsertStagingRecord(ctx, model.StagingRecord{Provider: model.ProviderWarehouse, AccountID: "acc", ProviderRecordID: "W"})

	if err := m.MarkStagingLinked(ctx, model.ProviderCourier, a.ID, "o1"); err != nil {
		t.Fatal(err)
	}
	got, err := m.FetchUnprocessedStaging(ctx, model.ProviderCourier, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("want only record B, got %+v", got)
	}
}

func TestApplyCarrierUpdateClaims(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	o := m.SeedOrder(model.CanonicalOrder{TenantID: "t1", OperationID: "op1"})

	upd := model.CarrierUpdate{
		Provider:       model.ProviderCourier,
		CarrierOrderID: "L-9",
		Status:         model.StatusShipped,
		TrackingNumber: "TRK1",
	}
	got, err := m.ApplyCarrierUpdate(ctx, o.ID, upd)
	if err != nil {
		t.Fatal(err)
	}
	if got.Provider != "courier" || !got.CarrierImported || got.Status != model.StatusShipped || got.TrackingNumber != "TRK1" {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.LastStatusUpdate == nil {
		t.Fatal("lastStatusUpdate not set")
	}

	// same provider may re-apply (idempotent re-run)
	if _, err := m.ApplyCarrierUpdate(ctx, o.ID, upd); err != nil {
		t.Fatalf("same-provider reapply must succeed: %v", err)
	}

	// a different provider must be rejected and leave the order untouched
	_, err = m.ApplyCarrierUpdate(ctx, o.ID, model.CarrierUpdate{
		Provider: model.ProviderWarehouse, CarrierOrderID: "W-1", Status: model.StatusDelivered,
	})
	if !errors.Is(err, ErrOwnershipConflict) {
		t.Fatalf("want ErrOwnershipConflict, got %v", err)
	}
	after, _ := m.GetOrder(ctx, o.ID)
	if after.Provider != "courier" || after.CarrierOrderID != "L-9" || after.Status != model.StatusShipped {
		t.Fatalf("conflicting update mutated the order: %+v", after)
	}
}

func TestCandidateOrdersNewestFirstAndScoped(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.SeedOrder(model.CanonicalOrder{ID: "old", OperationID: "op1", StoreID: "s1"})
	m.SeedOrder(model.CanonicalOrder{ID: "other", OperationID: "op2", StoreID: "s1"})
	m.SeedOrder(model.CanonicalOrder{ID: "new", OperationID: "op1", StoreID: "s1"})

	got, err := m.CandidateOrders(ctx, model.Scope{StoreID: "s1", OperationID: "op1"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("want [new old], got %+v", got)
	}
}
