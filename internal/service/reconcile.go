package service

import (
	"time"

	"github.com/bnema/vidflow/internal/domain"
)

// Reconcile applies an Engine job payload to a record. It never mutates v and
// reports whether the returned record differs from it. Only a processing
// record is ever changed, so applying the same payload twice is a no-op.
func Reconcile(v *domain.Video, payload *domain.JobPayload, now time.Time) (*domain.Video, bool) {
	if v == nil || payload == nil || v.Status != domain.VideoStatusProcessing {
		return v, false
	}

	switch payload.Status {
	case domain.JobStatusCompleted:
		next := v.Clone()
		var result domain.JobResult
		if payload.Data != nil {
			result = *payload.Data
		}
		next.MarkAsReady(formatsFrom(result.EncodedFiles), result.ThumbnailURL, result.Duration, result.VideoInfo, now)
		return next, true
	case domain.JobStatusError:
		next := v.Clone()
		next.MarkAsFailed(now)
		return next, true
	}
	return v, false
}

func formatsFrom(files []domain.EncodedFile) []domain.Format {
	formats := make([]domain.Format, 0, len(files))
	for _, f := range files {
		formats = append(formats, domain.Format{
			Quality: f.Quality,
			URL:     f.URL,
			Size:    f.Size,
			Bitrate: f.Bitrate,
		})
	}
	return formats
}
