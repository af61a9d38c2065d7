package domain

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// EncodedFile is one output rendition reported by the Engine.
type EncodedFile struct {
	Quality  string `json:"quality"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Bitrate  int64  `json:"bitrate"`
}

type JobResult struct {
	EncodedFiles []EncodedFile `json:"encoded_files"`
	ThumbnailURL string        `json:"thumbnail_url"`
	Duration     float64       `json:"duration"`
	VideoInfo    VideoInfo     `json:"video_info"`
}

// JobPayload is the Engine's view of a job at the time it was queried.
type JobPayload struct {
	Status    JobStatus  `json:"status"`
	Message   string     `json:"message,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
	Data      *JobResult `json:"data,omitempty"`
}

// StatusReport is what a status query returns to callers.
type StatusReport struct {
	Video   *Video `json:"video"`
	Message string `json:"message,omitempty"`
	Checked bool   `json:"checked"`
}
