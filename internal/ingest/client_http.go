package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient fetches staging records from a JSON feed endpoint. The real
// provider SDKs live outside this repo; deployments that only have a plain
// feed URL (or the integration gateway) use this client.
//
// Request:  GET {base}?since=...&cursor=...
// Response: {"records": [...], "cursor": "...", "watermark": "..."}
type HTTPClient struct {
	Base  string
	Token string
	HTTP  *http.Client
}

func NewHTTPClient(base, token string) *HTTPClient {
	return &HTTPClient{Base: base, Token: token, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPClient) FetchRecords(ctx context.Context, since, cursor string) (Page, error) {
	u, err := url.Parse(c.Base)
	if err != nil {
		return Page{}, err
	}
	q := u.Query()
	if since != "" {
		q.Set("since", since)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("feed returned %d", resp.StatusCode)
	}
	var body struct {
		Records   []feedRecord `json:"records"`
		Cursor    string       `json:"cursor"`
		Watermark string       `json:"watermark"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Page{}, err
	}
	page := Page{Cursor: body.Cursor, Watermark: body.Watermark}
	for _, r := range body.Records {
		page.Records = append(page.Records, r.toStaging())
	}
	return page, nil
}
