package models

import (
	"time"

	profile "drivematch/internal/profile/models"
	id "drivematch/pkg/domain"
)

// Snapshot is the persisted form of one session: its navigation history and
// profile. Verification state is not persisted; a restored session repeats
// verification.
type Snapshot struct {
	SessionID id.SessionID     `json:"session_id"`
	Actor     id.ActorType     `json:"actor,omitempty"`
	History   []id.ScreenID    `json:"history"`
	Profile   *profile.Profile `json:"profile"`
	Device    string           `json:"device,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	SavedAt   time.Time        `json:"saved_at"`
}
