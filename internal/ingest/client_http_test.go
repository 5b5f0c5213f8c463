package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientFetchRecords(t *testing.T) {
	var gotAuth, gotCursor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCursor = r.URL.Query().Get("cursor")
		_, _ = w.Write([]byte(`{"records":[{"id":"L-1","accountId":"acc1","status":"novo","extra":"kept"}],"cursor":"p2","watermark":"2026-08-30T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok")
	c.HTTP = srv.Client()
	page, err := c.FetchRecords(context.Background(), "", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok" || gotCursor != "abc" {
		t.Fatalf("request not shaped right: auth=%q cursor=%q", gotAuth, gotCursor)
	}
	if page.Cursor != "p2" || page.Watermark != "2026-08-30T00:00:00Z" || len(page.Records) != 1 {
		t.Fatalf("page not parsed: %+v", page)
	}
	rec := page.Records[0]
	if rec.ProviderRecordID != "L-1" || rec.AccountID != "acc1" || rec.Status != "novo" {
		t.Fatalf("record not mapped: %+v", rec)
	}
	// the untouched provider payload rides along for audit
	if string(rec.RawPayload) == "" || !json.Valid(rec.RawPayload) {
		t.Fatalf("raw payload lost: %q", rec.RawPayload)
	}
}
