package ingest

import (
	"encoding/json"

	"orderlink/internal/model"
)

// feedRecord is the wire shape of one feed entry. The raw message is kept
// verbatim as the staging payload so nothing the provider sent is lost, while
// the fields the matching engine needs are typed here at the boundary.
type feedRecord struct {
	ID            string `json:"id"`
	AccountID     string `json:"accountId"`
	OrderNumber   string `json:"orderNumber"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	CustomerEmail string `json:"customerEmail"`
	CustomerCity  string `json:"customerCity"`
	Status        string `json:"status"`
	TrackingCode  string `json:"trackingCode"`
	Value         string `json:"value"`

	raw json.RawMessage
}

func (r *feedRecord) UnmarshalJSON(b []byte) error {
	type alias feedRecord
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = feedRecord(a)
	r.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (r feedRecord) toStaging() model.StagingRecord {
	return model.StagingRecord{
		ProviderRecordID: r.ID,
		AccountID:        r.AccountID,
		OrderNumberHint:  r.OrderNumber,
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		CustomerEmail:    r.CustomerEmail,
		CustomerCity:     r.CustomerCity,
		Status:           r.Status,
		TrackingCode:     r.TrackingCode,
		Value:            r.Value,
		RawPayload:       r.raw,
	}
}
