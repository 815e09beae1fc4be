package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification events pushed to users.
const (
	EventQuoteAccepted      = "quote_accepted"
	EventMilestoneSubmitted = "milestone_submitted"
	EventMilestoneValidated = "milestone_validated"
	EventMilestoneContested = "milestone_contested"
	EventWorksiteCompleted  = "worksite_completed"
	EventTokenRedeemed      = "token_redeemed"
	EventTokenExpired       = "token_expired"
	EventDisputeOpened      = "dispute_opened"
	EventDisputeResolved    = "dispute_resolved"
)

// Notification is a stored event for a user, also pushed over websocket
// when the user is connected.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
