package models

import (
	"time"

	"github.com/google/uuid"
)

// FaceCredential maps an identity (employee username) to its stored
// embedding. At most one credential exists per identity; re-registration
// overwrites the previous vector.
type FaceCredential struct {
	Identity  string    `json:"identity" db:"identity"`
	Embedding []float32 `json:"-" db:"embedding"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FaceEventType distinguishes enrollment from verification events.
type FaceEventType string

const (
	FaceEventEnrolled FaceEventType = "face_enrolled"
	FaceEventVerified FaceEventType = "face_verified"
	FaceEventRejected FaceEventType = "face_rejected"
)

// FaceEvent is published to NATS by the face service after every
// enrollment or verification, and persisted by the API service.
type FaceEvent struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	Type        FaceEventType `json:"type" db:"type"`
	Identity    string        `json:"identity" db:"identity"`
	Match       bool          `json:"match" db:"match"`
	Confidence  float64       `json:"confidence" db:"confidence"`
	Distance    float64       `json:"distance" db:"distance"`
	SnapshotKey string        `json:"snapshot_key,omitempty" db:"snapshot_key"`
	OccurredAt  time.Time     `json:"occurred_at" db:"occurred_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
