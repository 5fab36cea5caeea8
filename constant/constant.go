package constant

type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusStopped SessionStatus = "stopped"
	SessionStatusFailed  SessionStatus = "failed"
)

func (s SessionStatus) String() string {
	return string(s)
}

// Terminal reports whether a session in this status can never become
// active again.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusStopped || s == SessionStatusFailed
}

type ClipDestination string

const (
	ClipDestinationLibrary ClipDestination = "library"
	ClipDestinationChannel ClipDestination = "channel"
)

type ReplayEventType string

const (
	ReplayEventStopped     ReplayEventType = "replay.stopped"
	ReplayEventFailed      ReplayEventType = "replay.failed"
	ReplayEventClipCreated ReplayEventType = "replay.clip_created"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

// SegmentSeconds is the fixed length the egress recorder writes each
// buffer segment with.
const SegmentSeconds = 10
