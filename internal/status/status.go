// Package status translates provider-native status vocabularies into the
// canonical order status enum. Lookups are case-insensitive and total:
// unknown or missing input maps to pending so an evolving provider vocabulary
// can never block the pipeline.
package status

import (
	"orderlink/internal/model"
	"orderlink/internal/normalize"
)

var courier = map[string]model.Status{
	"novo":              model.StatusPending,
	"aguardando":        model.StatusPending,
	"em separacao":      model.StatusProcessing,
	"em preparacao":     model.StatusProcessing,
	"confirmado":        model.StatusConfirmed,
	"agendado":          model.StatusConfirmed,
	"em transito":       model.StatusShipped,
	"a caminho":         model.StatusShipped,
	"saiu para entrega": model.StatusShipped,
	"entregue":          model.StatusDelivered,
	"devolvido":         model.StatusReturned,
	"devolucao":         model.StatusReturned,
	"recusado":          model.StatusReturned,
	"cancelado":         model.StatusCancelled,
}

var warehouse = map[string]model.Status{
	"received":         model.StatusPending,
	"on_hold":          model.StatusPending,
	"picking":          model.StatusProcessing,
	"packed":           model.StatusProcessing,
	"label_created":    model.StatusConfirmed,
	"ready_to_ship":    model.StatusConfirmed,
	"shipped":          model.StatusShipped,
	"in_transit":       model.StatusShipped,
	"out_for_delivery": model.StatusShipped,
	"delivered":        model.StatusDelivered,
	"return_to_sender": model.StatusReturned,
	"returned":         model.StatusReturned,
	"cancelled":        model.StatusCancelled,
}

var digital = map[string]model.Status{
	"created":    model.StatusPending,
	"pending":    model.StatusPending,
	"paid":       model.StatusConfirmed,
	"approved":   model.StatusConfirmed,
	"fulfilling": model.StatusProcessing,
	"fulfilled":  model.StatusDelivered,
	"delivered":  model.StatusDelivered,
	"refunded":   model.StatusReturned,
	"chargeback": model.StatusReturned,
	"cancelled":  model.StatusCancelled,
	"expired":    model.StatusCancelled,
}

var byProvider = map[model.Provider]map[string]model.Status{
	model.ProviderCourier:   courier,
	model.ProviderWarehouse: warehouse,
	model.ProviderDigital:   digital,
}

// Map returns the canonical status for a provider-native status string.
// Input is folded the same way names are (lowercase, diacritics stripped) so
// "Em Trânsito" and "em transito" hit the same entry.
// The second return reports whether the vocabulary recognized the input;
// callers that want to log unknown values can check it, but the mapped
// status is always usable.
func Map(p model.Provider, raw string) (model.Status, bool) {
	vocab := byProvider[p]
	if vocab == nil {
		return model.StatusPending, false
	}
	s, ok := vocab[normalize.Name(raw)]
	if !ok {
		return model.StatusPending, false
	}
	return s, true
}

// Vocabulary returns the provider's known status strings. Used by tests to
// assert the mapping is total over the documented vocabulary.
func Vocabulary(p model.Provider) []string {
	vocab := byProvider[p]
	out := make([]string, 0, len(vocab))
	for k := range vocab {
		out = append(out, k)
	}
	return out
}
