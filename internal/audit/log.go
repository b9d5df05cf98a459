// Package audit emits structured audit events for security-relevant actions:
// the login lifecycle and every mutation of organizations, users and teams.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"lexora.io/internal/auth"
	"lexora.io/internal/obs"
)

// Event names an auditable action. Handlers log these rather than free-form
// strings so the event vocabulary stays greppable.
type Event string

const (
	MagicLinkRequested Event = "auth.magic_link.requested"
	MagicLinkRedeemed  Event = "auth.magic_link.redeemed"
	OAuthLogin         Event = "auth.oauth.login"
	Logout             Event = "auth.logout"

	OrganizationCreated     Event = "organization.created"
	OrganizationUpdated     Event = "organization.updated"
	OrganizationUserAdded   Event = "organization.user.added"
	OrganizationUserRemoved Event = "organization.user.removed"

	UserUpdated Event = "user.updated"
	UserDeleted Event = "user.deleted"

	TeamCreated         Event = "team.created"
	TeamDeleted         Event = "team.deleted"
	TeamMemberAdded     Event = "team.member.added"
	TeamMemberRemoved   Event = "team.member.removed"
	TeamMembersReplaced Event = "team.members.replaced"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

type entry struct {
	TS        string         `json:"ts"`
	Type      string         `json:"type"`
	Event     Event          `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// LogEvent writes one audit entry, enriched with the request id and acting
// user taken from the context.
func LogEvent(ctx context.Context, event Event, fields map[string]any) error {
	if strings.TrimSpace(string(event)) == "" {
		return errors.New("event name is required")
	}
	e := entry{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		Type:      "audit",
		Event:     event,
		RequestID: RequestIDFromContext(ctx),
		Fields:    map[string]any{},
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		e.UserID = userID
	}
	for k, v := range fields {
		e.Fields[k] = v
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
