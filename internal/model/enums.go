package model

// Task status
type TaskStatus string

const (
	TaskStatusUploaded   TaskStatus = "uploaded"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusError      TaskStatus = "error"
)

// IsTerminal reports whether no further orchestration or reconciliation is expected.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusError
}

// Reel status as recorded by the orchestrator
type ReelStatus string

const (
	ReelStatusCompleted ReelStatus = "completed"
	ReelStatusFailed    ReelStatus = "failed"
)

// RemoteState is the state of an external asynchronous job
type RemoteState string

const (
	RemoteStateProcessing RemoteState = "processing"
	RemoteStateCompleted  RemoteState = "completed"
	RemoteStateFailed     RemoteState = "failed"
)

func (s RemoteState) IsTerminal() bool {
	return s == RemoteStateCompleted || s == RemoteStateFailed
}

// Reel durations in seconds
var ValidDurations = []int{15, 30, 60, 90}

// Publishing platforms
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformFacebook  = "facebook"
)

var ValidPlatforms = []string{PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformFacebook}

// Reel styles
const (
	StyleProfessional = "professional"
	StyleCasual       = "casual"
	StyleCreative     = "creative"
	StyleMinimal      = "minimal"
)

var ValidStyles = []string{StyleProfessional, StyleCasual, StyleCreative, StyleMinimal}

// MaxCaptionLength is the longest caption accepted by the publishing platforms
const MaxCaptionLength = 2200

// AllowedVideoExtensions lists the upload formats accepted, lowercase without dot.
var AllowedVideoExtensions = []string{"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm"}
