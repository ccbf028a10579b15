// Package queue defines message payloads exchanged over the message broker
// and the background consumer that processes them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Queue name shared by the publisher and the consumer.
const AuthEventsQueue = "auth.events"

// Event types published by the auth service.
const (
	EventUserRegistered         = "user.registered"
	EventPasswordResetRequested = "password.reset.requested"
	EventSessionsRevoked        = "sessions.revoked"
)

// Revocation reasons carried by sessions.revoked events.
const (
	ReasonReuseDetected   = "reuse_detected"
	ReasonPasswordChanged = "password_changed"
	ReasonPasswordReset   = "password_reset"
	ReasonDeactivated     = "deactivated"
)

// Event is the envelope for every message on the auth.events queue.  It
// carries enough information for downstream consumers (audit log, mailer,
// analytics) to act without querying the primary database.  ResetToken is
// only set on password.reset.requested events and is consumed by the mailer
// worker to build the reset link.
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
	UserID     uint64 `json:"user_id"`
	Email      string `json:"email,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ResetToken string `json:"reset_token,omitempty"`
}

// NewEvent builds an envelope with a fresh id and timestamp.
func NewEvent(eventType string, userID uint64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		UserID:     userID,
	}
}
