// Package egress wraps the external recording controller. The service layer
// only depends on the Controller interface so tests can substitute a fake.
package egress

import (
	"context"
	"strings"
)

type RecordingStatus string

const (
	StatusStarting RecordingStatus = "EGRESS_STARTING"
	StatusActive   RecordingStatus = "EGRESS_ACTIVE"
	StatusEnding   RecordingStatus = "EGRESS_ENDING"
	StatusComplete RecordingStatus = "EGRESS_COMPLETE"
	StatusFailed   RecordingStatus = "EGRESS_FAILED"
	StatusAborted  RecordingStatus = "EGRESS_ABORTED"
)

// Terminal reports whether the controller will never touch this recording
// again.
func (s RecordingStatus) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// Failed reports whether a terminal status ended in failure rather than a
// normal stop.
func (s RecordingStatus) Failed() bool {
	return s == StatusFailed || s == StatusAborted
}

type RecordingInfo struct {
	EgressId string          `json:"egressId"`
	RoomName string          `json:"roomName"`
	Status   RecordingStatus `json:"status"`
	Error    string          `json:"error,omitempty"`
}

type StartRecordingRequest struct {
	RoomName            string `json:"roomName"`
	VideoTrackId        string `json:"videoTrackId"`
	AudioTrackId        string `json:"audioTrackId"`
	ParticipantIdentity string `json:"participantIdentity,omitempty"`
	// OutputPathTemplate is the absolute segment filename template the
	// recorder writes to, e.g. ".../seg_{time}_{seq}.ts".
	OutputPathTemplate string `json:"outputPathTemplate"`
	PlaylistPath       string `json:"playlistPath"`
	SegmentSeconds     int    `json:"segmentSeconds"`
	// VideoBitrate in bits per second; zero selects the controller's
	// default preset.
	VideoBitrate int `json:"videoBitrate,omitempty"`
}

type TrackResolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Controller is the remote egress/room service. All calls are synchronous
// from the caller's perspective; the HTTP implementation bounds them with a
// request timeout.
type Controller interface {
	StartRecording(ctx context.Context, req StartRecordingRequest) (*RecordingInfo, error)
	// StopRecording returns an error matched by IsGoneErr when the
	// recording is already stopped or unknown.
	StopRecording(ctx context.Context, egressId string) error
	// GetRecording returns (nil, nil) when the controller no longer knows
	// the recording.
	GetRecording(ctx context.Context, egressId string) (*RecordingInfo, error)
	GetTrackResolution(ctx context.Context, roomName, trackId string) (*TrackResolution, error)
}

// IsGoneErr is the single place that matches the controller's
// "already stopped / does not exist" responses. The upstream service has no
// formal error taxonomy, so this is message matching by contract: it must
// return true exactly for errors meaning the recording cannot be stopped
// because it is already gone.
func IsGoneErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "egress does not exist") ||
		strings.Contains(msg, "already stopped") ||
		strings.Contains(msg, "not found")
}
