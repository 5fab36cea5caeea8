package entities

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	ObjectKey   string    `json:"object_key" gorm:"type:varchar(500);not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	SizeBytes   int64     `json:"size_bytes" gorm:"not null"`
	Checksum    string    `json:"checksum" gorm:"type:varchar(64);not null"`
	ContentType string    `json:"content_type" gorm:"type:varchar(100);not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (File) TableName() string {
	return "files"
}
