package domain

import (
	"fmt"
	"strings"
)

// Vocabulary translates canonical statuses to the labels one board variant shows.
type Vocabulary interface {
	Name() string
	Label(Status) (string, error)
	Status(label string) (Status, error)
}

// Vocabulary names accepted by VocabularyByName.
const (
	VocabularyNative  = "native"
	VocabularyDisplay = "display"
)

var (
	// NativeVocabulary labels statuses the way tasks are created and stored.
	NativeVocabulary Vocabulary = newLabelVocabulary(VocabularyNative, map[Status]string{
		StatusNotStarted: "Not Started",
		StatusInProgress: "In Progress",
		StatusComplete:   "Complete",
		StatusOverdue:    "Overdue",
	})
	// DisplayVocabulary labels statuses the way board columns are titled.
	DisplayVocabulary Vocabulary = newLabelVocabulary(VocabularyDisplay, map[Status]string{
		StatusNotStarted: "To Do",
		StatusInProgress: "In Progress",
		StatusComplete:   "Completed",
		StatusOverdue:    "Overdue",
	})
)

// labelVocabulary is a closed status<->label table.
type labelVocabulary struct {
	name     string
	labels   map[Status]string
	statuses map[string]Status
}

// newLabelVocabulary builds one vocabulary and panics unless labels is a bijection over canonical statuses.
func newLabelVocabulary(name string, labels map[Status]string) labelVocabulary {
	if len(labels) != len(canonicalStatuses) {
		panic(fmt.Sprintf("vocabulary %s: want %d labels, got %d", name, len(canonicalStatuses), len(labels)))
	}
	statuses := make(map[string]Status, len(labels))
	for _, status := range canonicalStatuses {
		label, ok := labels[status]
		if !ok || strings.TrimSpace(label) == "" {
			panic(fmt.Sprintf("vocabulary %s: missing label for %s", name, status))
		}
		key := labelKey(label)
		if _, dup := statuses[key]; dup {
			panic(fmt.Sprintf("vocabulary %s: duplicate label %q", name, label))
		}
		statuses[key] = status
	}
	return labelVocabulary{name: name, labels: labels, statuses: statuses}
}

// Name returns the vocabulary name.
func (v labelVocabulary) Name() string {
	return v.name
}

// Label returns the vocabulary label for one canonical status.
func (v labelVocabulary) Label(status Status) (string, error) {
	label, ok := v.labels[status]
	if !ok {
		return "", fmt.Errorf("%w: status %q is outside the %s vocabulary", ErrInvariantViolation, status, v.name)
	}
	return label, nil
}

// Status resolves one vocabulary label back to its canonical status.
func (v labelVocabulary) Status(label string) (Status, error) {
	status, ok := v.statuses[labelKey(label)]
	if !ok {
		return "", fmt.Errorf("%w: label %q is outside the %s vocabulary", ErrInvariantViolation, label, v.name)
	}
	return status, nil
}

func labelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// VocabularyByName resolves a configured vocabulary name.
func VocabularyByName(name string) (Vocabulary, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", VocabularyDisplay:
		return DisplayVocabulary, nil
	case VocabularyNative:
		return NativeVocabulary, nil
	default:
		return nil, fmt.Errorf("unknown status vocabulary %q", name)
	}
}

// ToDisplayVocabulary maps a native label (Not Started, Complete, ...) to its display label.
func ToDisplayVocabulary(native string) (string, error) {
	return translate(NativeVocabulary, DisplayVocabulary, native)
}

// ToNativeVocabulary maps a display label (To Do, Completed, ...) to its native label.
func ToNativeVocabulary(display string) (string, error) {
	return translate(DisplayVocabulary, NativeVocabulary, display)
}

func translate(from, to Vocabulary, label string) (string, error) {
	status, err := from.Status(label)
	if err != nil {
		return "", err
	}
	return to.Label(status)
}

// MustLabel returns the label for a status that is known to be canonical.
func MustLabel(v Vocabulary, status Status) string {
	label, err := v.Label(status)
	if err != nil {
		panic(err)
	}
	return label
}
