package tui

import (
	"github.com/atotto/clipboard"

	"github.com/hylla/tavla/internal/domain"
)

type Option func(*Model)

// WithVocabulary sets the labels used for column titles, the filter, and move notifications.
func WithVocabulary(vocab domain.Vocabulary) Option {
	return func(m *Model) {
		if vocab != nil {
			m.vocab = vocab
		}
	}
}

// WithActor attributes board actions to actor and enables presentational permission checks.
func WithActor(actor domain.TeamMember) Option {
	return func(m *Model) {
		m.actor = actor
	}
}

func WithActivationDistance(distance float64) Option {
	return func(m *Model) {
		m.activation = distance
	}
}

func WithShowDescription(show bool) Option {
	return func(m *Model) {
		m.showDescription = show
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copy = write
		}
	}
}

// WithChangeFeed reloads the board each time feed delivers a change event.
func WithChangeFeed(feed <-chan domain.ChangeEvent) Option {
	return func(m *Model) {
		m.feed = feed
	}
}

func systemClipboard(text string) error {
	return clipboard.WriteAll(text)
}
