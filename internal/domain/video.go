package domain

import (
	"strings"
	"time"
)

type VideoStatus string

const (
	VideoStatusUploading  VideoStatus = "uploading"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusError      VideoStatus = "error"
)

// transitions lists the allowed edges of the lifecycle. Ready and error are terminal.
var transitions = map[VideoStatus][]VideoStatus{
	VideoStatusUploading:  {VideoStatusProcessing, VideoStatusError},
	VideoStatusProcessing: {VideoStatusReady, VideoStatusError},
}

func (s VideoStatus) IsValid() bool {
	switch s {
	case VideoStatusUploading, VideoStatusProcessing, VideoStatusReady, VideoStatusError:
		return true
	}
	return false
}

func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusReady || s == VideoStatusError
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Format struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	Size    int64  `json:"size"`
	Bitrate int64  `json:"bitrate"`
}

type VideoInfo struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Codec  string  `json:"codec"`
	FPS    float64 `json:"fps"`
}

type Video struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	OriginalFilename string      `json:"original_filename"`
	Status           VideoStatus `json:"status"`
	JobID            string      `json:"job_id,omitempty"`
	SourceURL        string      `json:"source_url,omitempty"`
	Thumbnail        string      `json:"thumbnail,omitempty"`
	Duration         float64     `json:"duration,omitempty"`
	VideoInfo        *VideoInfo  `json:"video_info,omitempty"`
	Formats          []Format    `json:"formats"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewVideo returns a record in the uploading state. The id is assigned by the caller.
func NewVideo(id, title, description, originalFilename string, now time.Time) *Video {
	return &Video{
		ID:               id,
		Title:            strings.TrimSpace(title),
		Description:      strings.TrimSpace(description),
		OriginalFilename: originalFilename,
		Status:           VideoStatusUploading,
		Formats:          []Format{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy so callers can mutate the result without touching the original.
func (v *Video) Clone() *Video {
	c := *v
	if v.VideoInfo != nil {
		info := *v.VideoInfo
		c.VideoInfo = &info
	}
	c.Formats = make([]Format, len(v.Formats))
	copy(c.Formats, v.Formats)
	return &c
}

func (v *Video) MarkAsProcessing(jobID string, now time.Time) {
	v.Status = VideoStatusProcessing
	v.JobID = jobID
	v.touch(now)
}

func (v *Video) MarkAsReady(formats []Format, thumbnail string, duration float64, info VideoInfo, now time.Time) {
	v.Status = VideoStatusReady
	v.Formats = formats
	v.Thumbnail = thumbnail
	v.Duration = duration
	v.VideoInfo = &info
	v.touch(now)
}

func (v *Video) MarkAsFailed(now time.Time) {
	v.Status = VideoStatusError
	v.Formats = []Format{}
	v.touch(now)
}

// UpdateDetails changes the user-editable fields. Everything else is owned by the lifecycle.
func (v *Video) UpdateDetails(title, description string, now time.Time) {
	v.Title = strings.TrimSpace(title)
	v.Description = strings.TrimSpace(description)
	v.touch(now)
}

// touch keeps updatedAt >= createdAt even with a skewed clock.
func (v *Video) touch(now time.Time) {
	if now.Before(v.CreatedAt) {
		now = v.CreatedAt
	}
	v.UpdatedAt = now
}

// FormatByQuality returns the format entry for a quality tag, or nil.
func (v *Video) FormatByQuality(quality string) *Format {
	for i := range v.Formats {
		if strings.EqualFold(v.Formats[i].Quality, quality) {
			return &v.Formats[i]
		}
	}
	return nil
}

// Qualities returns the quality tags of the encoded formats in order.
func (v *Video) Qualities() []string {
	qualities := make([]string, 0, len(v.Formats))
	for _, f := range v.Formats {
		qualities = append(qualities, f.Quality)
	}
	return qualities
}

var allowedVideoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".mkv": true,
}

// IsAllowedVideoExt reports whether the Engine accepts files with this extension.
func IsAllowedVideoExt(ext string) bool {
	return allowedVideoExts[strings.ToLower(ext)]
}
