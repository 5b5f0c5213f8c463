package ingest

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"orderlink/internal/model"
	"orderlink/internal/store"
)

// pagedClient serves fixed pages in order and records the since value of
// every call.
type pagedClient struct {
	pages  []Page
	calls  int
	sinces []string
}

func (c *pagedClient) FetchRecords(_ context.Context, since, cursor string) (Page, error) {
	c.sinces = append(c.sinces, since)
	if c.calls >= len(c.pages) {
		return Page{}, nil
	}
	p := c.pages[c.calls]
	c.calls++
	return p, nil
}

func TestRunOncePagesAndUpserts(t *testing.T) {
	mem := store.NewMemory()
	client := &pagedClient{pages: []Page{
		{Records: []model.StagingRecord{
			{AccountID: "acc1", ProviderRecordID: "L-1", Status: "novo"},
			{AccountID: "acc1", ProviderRecordID: "L-2", Status: "novo"},
		}, Cursor: "next"},
		{Records: []model.StagingRecord{
			{AccountID: "acc1", ProviderRecordID: "L-3", Status: "novo"},
		}},
	}}
	a := NewAdapter(model.ProviderCourier, client, mem, 100, zap.NewNop())

	n, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || client.calls != 2 {
		t.Fatalf("want 3 records over 2 pages, got n=%d calls=%d", n, client.calls)
	}
	rows, err := mem.FetchUnprocessedStaging(context.Background(), model.ProviderCourier, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 staged rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.ProcessedToOrders {
			t.Fatalf("ingestion must never mark rows processed: %+v", r)
		}
		if r.Provider != model.ProviderCourier {
			t.Fatalf("adapter must stamp its provider: %+v", r)
		}
	}
}

func TestReIngestCannotFlipProcessed(t *testing.T) {
	mem := store.NewMemory()
	rec := model.StagingRecord{AccountID: "acc1", ProviderRecordID: "L-1", RawPayload: []byte(`{"s":"novo"}`)}
	client := &pagedClient{pages: []Page{{Records: []model.StagingRecord{rec}}}}
	a := NewAdapter(model.ProviderCourier, client, mem, 100, zap.NewNop())
	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	rows, _ := mem.FetchUnprocessedStaging(context.Background(), model.ProviderCourier, 10)
	if err := mem.MarkStagingLinked(context.Background(), model.ProviderCourier, rows[0].ID, "o1"); err != nil {
		t.Fatal(err)
	}

	// identical payload arrives again: the processed flag must survive
	client.pages = append(client.pages, Page{Records: []model.StagingRecord{rec}})
	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	rows, _ = mem.FetchUnprocessedStaging(context.Background(), model.ProviderCourier, 10)
	if len(rows) != 0 {
		t.Fatalf("unchanged re-ingest reopened a processed row: %+v", rows)
	}
}

func TestWatermarkAdvancesAcrossPolls(t *testing.T) {
	mem := store.NewMemory()
	client := &pagedClient{pages: []Page{
		{Records: []model.StagingRecord{{AccountID: "acc1", ProviderRecordID: "L-1"}},
			Cursor: "next", Watermark: "2026-08-01T00:00:00Z"},
		{Records: []model.StagingRecord{{AccountID: "acc1", ProviderRecordID: "L-2"}},
			Watermark: "2026-08-02T00:00:00Z"},
	}}
	a := NewAdapter(model.ProviderCourier, client, mem, 100, zap.NewNop())
	a.SetWatermark("2026-07-01T00:00:00Z")

	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if client.sinces[0] != "2026-07-01T00:00:00Z" {
		t.Fatalf("seeded watermark not sent: %q", client.sinces[0])
	}

	// the next poll starts from the last watermark the provider reported
	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	last := client.sinces[len(client.sinces)-1]
	if last != "2026-08-02T00:00:00Z" {
		t.Fatalf("watermark did not advance, next poll sent since=%q", last)
	}
}

// failingSink rejects every upsert.
type failingSink struct{}

func (failingSink) UpsertStagingRecord(_ context.Context, _ model.StagingRecord) (model.StagingRecord, error) {
	return model.StagingRecord{}, errors.New("down")
}

func TestWatermarkHeldWhenRecordsDropped(t *testing.T) {
	client := &pagedClient{pages: []Page{
		{Records: []model.StagingRecord{{AccountID: "acc1", ProviderRecordID: "L-1"}},
			Watermark: "2026-08-01T00:00:00Z"},
	}}
	a := NewAdapter(model.ProviderCourier, client, failingSink{}, 100, zap.NewNop())
	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	// the dropped record must be refetched, so since stays put
	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	last := client.sinces[len(client.sinces)-1]
	if last != "" {
		t.Fatalf("watermark advanced past a dropped record, since=%q", last)
	}
}
