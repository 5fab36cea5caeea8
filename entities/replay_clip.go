package entities

import (
	"time"

	"github.com/google/uuid"
)

// ReplayClip outlives the session it was cut from; it only references the
// stored file, never the buffer directory.
type ReplayClip struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserId          uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_replay_clips_user_id"`
	FileId          uuid.UUID `json:"file_id" gorm:"type:uuid;not null"`
	ChannelId       uuid.UUID `json:"channel_id" gorm:"type:uuid"`
	DurationSeconds float64   `json:"duration_seconds" gorm:"not null"`
	IsPublic        bool      `json:"is_public" gorm:"not null;default:false"`
	CapturedAt      time.Time `json:"captured_at" gorm:"type:timestamptz;not null"`
}

func (ReplayClip) TableName() string {
	return "replay_clips"
}
