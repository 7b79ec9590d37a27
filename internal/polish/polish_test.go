package polish

import (
	"encoding/json"
	"testing"
)

func envelope(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return m
}

func TestNormalize_AcceptedShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"nested content description", `{"content":{"description":"X"}}`},
		{"nested content polished", `{"content":{"polishedDescription":"X"}}`},
		{"top-level polished", `{"polishedDescription":"X"}`},
		{"top-level summary", `{"summary":"X"}`},
		{"top-level text", `{"text":"X"}`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Normalize(envelope(t, c.raw))
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != "X" {
				t.Fatalf("got %q, want X", got)
			}
		})
	}
}

func TestNormalize_PriorityOrder(t *testing.T) {
	got, err := Normalize(envelope(t, `{"polishedDescription":"first","description":"second","summary":"third"}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "first" {
		t.Fatalf("expected polishedDescription to win, got %q", got)
	}

	// empty high-priority fields are skipped, not returned
	got, err = Normalize(envelope(t, `{"polishedDescription":"  ","description":"second"}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "second" {
		t.Fatalf("expected fallthrough past empty field, got %q", got)
	}
}

func TestNormalize_NestedWinsOverTopLevel(t *testing.T) {
	got, err := Normalize(envelope(t, `{"content":{"description":"nested"},"description":"top"}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "nested" {
		t.Fatalf("expected nested content to win, got %q", got)
	}
}

func TestNormalize_NoRecognizedField(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"improved":"X"}`,
		`{"description":""}`,
		`{"content":{"other":"X"}}`,
	} {
		if _, err := Normalize(envelope(t, raw)); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}
