package domain

import (
	"errors"
	"testing"
)

func TestVocabularyRoundTrip(t *testing.T) {
	for _, status := range Statuses() {
		native := MustLabel(NativeVocabulary, status)
		display, err := ToDisplayVocabulary(native)
		if err != nil {
			t.Fatalf("ToDisplayVocabulary(%q) error = %v", native, err)
		}
		back, err := ToNativeVocabulary(display)
		if err != nil {
			t.Fatalf("ToNativeVocabulary(%q) error = %v", display, err)
		}
		if back != native {
			t.Fatalf("round trip %q -> %q -> %q", native, display, back)
		}
	}
}

func TestVocabularyPairs(t *testing.T) {
	want := map[string]string{
		"Not Started": "To Do",
		"In Progress": "In Progress",
		"Complete":    "Completed",
		"Overdue":     "Overdue",
	}
	for native, display := range want {
		got, err := ToDisplayVocabulary(native)
		if err != nil {
			t.Fatalf("ToDisplayVocabulary(%q) error = %v", native, err)
		}
		if got != display {
			t.Fatalf("ToDisplayVocabulary(%q) = %q, want %q", native, got, display)
		}
	}
}

func TestVocabularyRejectsUnknownLabel(t *testing.T) {
	if _, err := ToDisplayVocabulary("Blocked"); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if _, err := ToNativeVocabulary("Complete"); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("native label must not resolve in display vocabulary, got %v", err)
	}
	if _, err := DisplayVocabulary.Label("blocked"); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestVocabularyByName(t *testing.T) {
	v, err := VocabularyByName("")
	if err != nil || v.Name() != VocabularyDisplay {
		t.Fatalf("expected display default, got %v %v", v, err)
	}
	v, err = VocabularyByName("Native")
	if err != nil || v.Name() != VocabularyNative {
		t.Fatalf("expected native vocabulary, got %v %v", v, err)
	}
	if _, err := VocabularyByName("klingon"); err == nil {
		t.Fatal("expected unknown vocabulary error")
	}
}

func TestNewLabelVocabularyPanicsOnNonBijection(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for duplicate labels")
		}
	}()
	newLabelVocabulary("broken", map[Status]string{
		StatusNotStarted: "Open",
		StatusInProgress: "Open",
		StatusComplete:   "Done",
		StatusOverdue:    "Late",
	})
}
