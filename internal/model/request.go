package model

// GenerateReelsRequest is the body of POST /generate-reels
type GenerateReelsRequest struct {
	FileID  string       `json:"file_id" validate:"required"`
	Configs []ReelConfig `json:"configs" validate:"required,min=1,max=10,dive"`
}

// FileRequest is the body of the content generation endpoints
type FileRequest struct {
	FileID string `json:"file_id" validate:"required"`
}

// WebhookRequest is the callback body posted by the clipping service
type WebhookRequest struct {
	ProjectID string          `json:"projectId"`
	Status    string          `json:"status"`
	Outputs   []WebhookOutput `json:"outputs,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type WebhookOutput struct {
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// UploadResponse is returned by POST /upload
type UploadResponse struct {
	Success bool   `json:"success"`
	FileID  string `json:"file_id"`
	Message string `json:"message"`
}

// MessageResponse is a bare success acknowledgement
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is returned by GET /status/:taskId
type StatusResponse struct {
	Success      bool       `json:"success"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	Message      string     `json:"message,omitempty"`
	Reels        []Reel     `json:"reels"`
	VideoURL     string     `json:"video_url,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// NewStatusResponse builds the client view of a task.
func NewStatusResponse(t *Task) *StatusResponse {
	reels := t.Reels
	if reels == nil {
		reels = []Reel{}
	}
	return &StatusResponse{
		Success:      t.Status != TaskStatusFailed && t.Status != TaskStatusError,
		Status:       t.Status,
		Progress:     t.Progress,
		Message:      t.Message,
		Reels:        reels,
		VideoURL:     t.VideoURL,
		ThumbnailURL: t.ThumbnailURL,
		Error:        t.Error,
	}
}

type TranscriptResponse struct {
	Success    bool        `json:"success"`
	Transcript *Transcript `json:"transcript"`
	Message    string      `json:"message"`
}

type PosterResponse struct {
	Success bool    `json:"success"`
	Poster  *Poster `json:"poster"`
	Message string  `json:"message"`
}

type BlogResponse struct {
	Success bool   `json:"success"`
	Blog    *Blog  `json:"blog"`
	Message string `json:"message"`
}

// ReelOptionsResponse lists accepted reel configuration values
type ReelOptionsResponse struct {
	Durations        []int    `json:"durations"`
	Platforms        []string `json:"platforms"`
	Styles           []string `json:"styles"`
	MaxCaptionLength int      `json:"max_caption_length"`
}

// StatsResponse summarises stored tasks and files
type StatsResponse struct {
	Success      bool               `json:"success"`
	TotalFiles   int                `json:"total_files"`
	TotalSizeMB  float64            `json:"total_size_mb"`
	StatusCounts map[TaskStatus]int `json:"status_counts"`
}

type CleanupResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}
