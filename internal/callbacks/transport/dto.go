package transport

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleCallbackRequest books a callback with another user.
type ScheduleCallbackRequest struct {
	Title         string     `json:"title" validate:"required,min=1,max=200"`
	Notes         string     `json:"notes,omitempty" validate:"max=2000"`
	ContactUserID uuid.UUID  `json:"contactUserId" validate:"required"`
	DealID        *uuid.UUID `json:"dealId,omitempty"`
	ScheduledAt   time.Time  `json:"scheduledAt" validate:"required"`
}
