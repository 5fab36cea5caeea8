package dto

import (
	"time"

	"github.com/google/uuid"
	"replay-service/constant"
)

// EgressEventMessage is the "recording ended" event relayed from the egress
// controller's webhook receiver onto the events queue.
type EgressEventMessage struct {
	EgressId     string                 `json:"egressId"`
	Status       constant.SessionStatus `json:"status"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
}

type StartRequest struct {
	UserId              uuid.UUID `json:"userId"`
	ChannelId           uuid.UUID `json:"channelId"`
	RoomName            string    `json:"roomName"`
	VideoTrackId        string    `json:"videoTrackId"`
	AudioTrackId        string    `json:"audioTrackId"`
	ParticipantIdentity string    `json:"participantIdentity,omitempty"`
}

type SessionResult struct {
	SessionId uuid.UUID              `json:"sessionId"`
	EgressId  string                 `json:"egressId"`
	Status    constant.SessionStatus `json:"status"`
}

type CaptureRequest struct {
	UserId          uuid.UUID                `json:"userId"`
	DurationMinutes int                      `json:"durationMinutes,omitempty"`
	StartSeconds    *float64                 `json:"startSeconds,omitempty"`
	EndSeconds      *float64                 `json:"endSeconds,omitempty"`
	Destination     constant.ClipDestination `json:"destination"`
	ChannelId       uuid.UUID                `json:"channelId,omitempty"`
	IsPublic        bool                     `json:"isPublic"`
}

type CaptureResult struct {
	ClipId          uuid.UUID `json:"clipId"`
	FileId          uuid.UUID `json:"fileId"`
	DurationSeconds float64   `json:"durationSeconds"`
	SizeBytes       int64     `json:"sizeBytes"`
	DownloadUrl     string    `json:"downloadUrl"`
	MessageId       string    `json:"messageId,omitempty"`
}

type SessionInfo struct {
	HasActiveSession     bool       `json:"hasActiveSession"`
	SessionId            *uuid.UUID `json:"sessionId,omitempty"`
	TotalSegments        int        `json:"totalSegments,omitempty"`
	TotalDurationSeconds int        `json:"totalDurationSeconds,omitempty"`
	BufferStartTime      *time.Time `json:"bufferStartTime,omitempty"`
	BufferEndTime        *time.Time `json:"bufferEndTime,omitempty"`
}

// ReplayEvent is published to the realtime exchange so connected clients
// learn about session transitions and new clips.
type ReplayEvent struct {
	Type      constant.ReplayEventType `json:"type"`
	UserId    uuid.UUID                `json:"userId"`
	SessionId uuid.UUID                `json:"sessionId,omitempty"`
	EgressId  string                   `json:"egressId,omitempty"`
	ChannelId uuid.UUID                `json:"channelId,omitempty"`
	ClipId    uuid.UUID                `json:"clipId,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// ClipMessage is handed to the chat collaborator when a capture targets a
// channel rather than the user's library.
type ClipMessage struct {
	UserId          uuid.UUID `json:"userId"`
	ChannelId       uuid.UUID `json:"channelId"`
	FileId          uuid.UUID `json:"fileId"`
	FileName        string    `json:"fileName"`
	DurationSeconds float64   `json:"durationSeconds"`
}
