package model

import "time"

// Task is the per-upload record tracked through upload, reel generation and
// content enrichment. Its ID is the upload file id.
type Task struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	Progress  int        `json:"progress"`
	Message   string     `json:"message,omitempty"`
	Filename  string     `json:"filename"`
	FilePath  string     `json:"file_path"`
	SourceURL string     `json:"source_url,omitempty"`
	VideoInfo VideoInfo  `json:"video_info"`

	// RunID identifies the generation request that owns Configs and Reels.
	RunID   string       `json:"run_id,omitempty"`
	Configs []ReelConfig `json:"configs,omitempty"`
	Reels   []Reel       `json:"reels"`

	// Live external correlation id of the most recent asynchronous reel.
	ProjectID    string `json:"project_id,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Error        string `json:"error,omitempty"`

	Transcript *Transcript `json:"transcript,omitempty"`
	Poster     *Poster     `json:"poster,omitempty"`
	Blog       *Blog       `json:"blog,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// ReelIndexForProject returns the position of the reel submitted under
// projectID, or -1.
func (t *Task) ReelIndexForProject(projectID string) int {
	for i := range t.Reels {
		if t.Reels[i].ProjectID == projectID {
			return i
		}
	}
	return -1
}

// FindReel returns the reel with the given id.
func (t *Task) FindReel(reelID string) (*Reel, bool) {
	for i := range t.Reels {
		if t.Reels[i].ID == reelID {
			return &t.Reels[i], true
		}
	}
	return nil, false
}

// VideoInfo describes the uploaded source video
type VideoInfo struct {
	FileSizeMB float64   `json:"file_size_mb"`
	Duration   string    `json:"duration"`
	Resolution string    `json:"resolution"`
	Format     string    `json:"format"`
	MimeType   string    `json:"mime_type,omitempty"`
	UploadTime time.Time `json:"upload_time"`
}

// FileRecord is the upload metadata kept alongside the task record
type FileRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"file_path"`
	StorageKey  string    `json:"storage_key,omitempty"` // object key when mirrored to remote storage
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
