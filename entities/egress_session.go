package entities

import (
	"time"

	"github.com/google/uuid"
	"replay-service/constant"
)

// EgressSession is one recording attempt against the external egress
// controller. At most one row per user may be in the active status; the
// partial unique index backs the application-level guard in the service.
type EgressSession struct {
	ID          uuid.UUID              `json:"id" gorm:"type:uuid;primary_key"`
	UserId      uuid.UUID              `json:"user_id" gorm:"type:uuid;not null;index:idx_egress_sessions_user_id;uniqueIndex:unique_active_session_per_user,where:status = 'active'"`
	RoomName    string                 `json:"room_name" gorm:"type:varchar(255);not null"`
	ChannelId   uuid.UUID              `json:"channel_id" gorm:"type:uuid;not null"`
	EgressId    string                 `json:"egress_id" gorm:"type:varchar(255);not null;index:idx_egress_sessions_egress_id"`
	SegmentPath string                 `json:"segment_path" gorm:"type:varchar(500);not null"`
	Status      constant.SessionStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_egress_sessions_status"`
	StartedAt   time.Time              `json:"started_at" gorm:"type:timestamptz;not null"`
	EndedAt     *time.Time             `json:"ended_at" gorm:"type:timestamptz"`
	Error       *string                `json:"error" gorm:"type:text"`
}

func (EgressSession) TableName() string {
	return "egress_sessions"
}
