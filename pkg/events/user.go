package events

import "time"

const (
	UserRegistered      = "user_registered"
	UserLoggedIn        = "user_logged_in"
	UserTokensRefreshed = "user_tokens_refreshed"
	UserLoggedOut       = "user_logged_out"
	UserCreated         = "user_created"
	UserUpdated         = "user_updated"
	UserRoleChanged     = "user_role_changed"
	UserDeleted         = "user_deleted"
)

type UserEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role,omitempty"`
	PrevRole   string    `json:"prev_role,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
