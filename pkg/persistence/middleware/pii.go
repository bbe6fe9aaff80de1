package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// Mask replaces redacted text.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedaction creates a middleware that masks every match of patterns inside
// free-text notes before they reach the store. Loads are passed through.
func NewRedaction(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redaction pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactionMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, session *domain.Session) error {
	// Work on a copy; the caller's session stays untouched.
	cloned := *session
	cloned.State = session.State.Clone()
	if cloned.State != nil {
		for id, a := range cloned.State.Answers {
			cloned.State.Answers[id] = m.redact(a)
		}
		for i, e := range cloned.State.Trail {
			cloned.State.Trail[i].Answer = m.redact(e.Answer)
		}
	}
	return m.next.Save(ctx, &cloned)
}

func (m *redactionMiddleware) redact(a domain.Answer) domain.Answer {
	if a.Kind != domain.AnswerText {
		return a
	}
	for _, p := range m.patterns {
		a.Text = p.ReplaceAllString(a.Text, Mask)
	}
	return a
}

func (m *redactionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
