// Package audit emits structured security events (authentication outcomes,
// lockouts, rotations, replay detections) without blocking the hot path. A
// buffered dispatcher hands events to a pluggable sink; when the buffer is
// full events are counted and dropped rather than stalling a login.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event types recorded by the engine.
const (
	EventAuthSuccess      = "auth.success"
	EventAuthFailure      = "auth.failure"
	EventAccountLocked    = "auth.locked"
	EventChallengeIssued  = "mfa.challenge_issued"
	EventChallengePassed  = "mfa.challenge_passed"
	EventChallengeFailed  = "mfa.challenge_failed"
	EventTokenIssued      = "token.issued"
	EventTokenRefreshed   = "token.refreshed"
	EventReplayDetected   = "token.replay_detected"
	EventFamilyRevoked    = "session.family_revoked"
	EventCredentialRotate = "credential.rotated"
	EventKeyRotated       = "key.rotated"
)

// Event is a single audit record. PrincipalID is present whenever the
// attempt resolved to a known principal; FamilyID for token lifecycle
// events.
type Event struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   string            `json:"event_type"`
	PrincipalID string            `json:"principal_id,omitempty"`
	FamilyID    string            `json:"family_id,omitempty"`
	Origin      string            `json:"origin,omitempty"`
	RiskLevel   string            `json:"risk_level,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the dispatcher, one at a time.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoopSink discards everything.
type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) {}

// SlogSink writes events as structured log records. The default sink in
// production wiring.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(ctx context.Context, event Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}
	if event.PrincipalID != "" {
		attrs = append(attrs, slog.String("principal_id", event.PrincipalID))
	}
	if event.FamilyID != "" {
		attrs = append(attrs, slog.String("family_id", event.FamilyID))
	}
	if event.Origin != "" {
		attrs = append(attrs, slog.String("origin", event.Origin))
	}
	if event.RiskLevel != "" {
		attrs = append(attrs, slog.String("risk_level", event.RiskLevel))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "audit", attrs...)
}

// ChannelSink buffers events on a channel so tests can assert on them.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
