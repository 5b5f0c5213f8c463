package ops

import (
	"context"
	"errors"
	"testing"

	"orderlink/internal/model"
)

type fakeSource map[string][]model.Operation

func (f fakeSource) ListAccountOperations(_ context.Context, _ model.Provider) (map[string][]model.Operation, error) {
	return f, nil
}

func buildCache(t *testing.T, src fakeSource) *Cache {
	t.Helper()
	c, err := BuildCache(context.Background(), src, model.ProviderCourier)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestResolveByPrefix(t *testing.T) {
	c := buildCache(t, fakeSource{
		"acc1": {
			{ID: "op-a", OrderNumberPrefix: "AA-"},
			{ID: "op-b", OrderNumberPrefix: "BB-"},
		},
	})
	op, fellBack, err := c.Resolve("acc1", "BB-1042")
	if err != nil {
		t.Fatal(err)
	}
	if op.ID != "op-b" || fellBack {
		t.Fatalf("want op-b without fallback, got %q fellBack=%v", op.ID, fellBack)
	}
}

func TestResolveFallbackToFirst(t *testing.T) {
	c := buildCache(t, fakeSource{
		"acc1": {
			{ID: "op-a", OrderNumberPrefix: "AA-"},
			{ID: "op-b", OrderNumberPrefix: "BB-"},
		},
	})
	op, fellBack, err := c.Resolve("acc1", "ZZ-7")
	if err != nil {
		t.Fatal(err)
	}
	if op.ID != "op-a" || !fellBack {
		t.Fatalf("want first-op fallback, got %q fellBack=%v", op.ID, fellBack)
	}
}

func TestResolveNoOperations(t *testing.T) {
	c := buildCache(t, fakeSource{})
	_, _, err := c.Resolve("ghost", "AA-1")
	if !errors.Is(err, ErrNoOperations) {
		t.Fatalf("want ErrNoOperations, got %v", err)
	}
}
