package events

import (
	"testing"
)

func TestNew(t *testing.T) {
	e := New(KindRX)

	if e.ID == "" {
		t.Error("New() produced empty ID")
	}
	if e.Kind != KindRX {
		t.Errorf("Kind = %q, want %q", e.Kind, KindRX)
	}
	if e.Time.IsZero() {
		t.Error("New() produced zero timestamp")
	}

	if other := New(KindRX); other.ID == e.ID {
		t.Error("New() produced duplicate IDs")
	}
}

func TestMulti_FansOutInOrder(t *testing.T) {
	var order []string
	first := SinkFunc(func(Event) { order = append(order, "first") })
	second := SinkFunc(func(Event) { order = append(order, "second") })

	Multi(first, second).Emit(New(KindTX))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("fan-out order = %v, want [first second]", order)
	}
}

func TestMulti_SkipsNilSinks(t *testing.T) {
	calls := 0
	sink := SinkFunc(func(Event) { calls++ })

	Multi(nil, sink, nil).Emit(New(KindDelay))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestMulti_EmptyIsSafe(t *testing.T) {
	// Must not panic with no sinks configured.
	Multi().Emit(New(KindReboot))
}
