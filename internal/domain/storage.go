package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

type ProviderName string

const (
	ProviderS3         ProviderName = "s3"
	ProviderGCS        ProviderName = "gcs"
	ProviderCloudinary ProviderName = "cloudinary"
)

const DefaultContentType = "application/octet-stream"

const HLSContentType = "application/x-mpegURL"

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// ContentTypeFor maps a file extension (with or without the dot, any case) to its MIME type.
func ContentTypeFor(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return DefaultContentType
}

// ContentTypeForPath is ContentTypeFor applied to the extension of path.
func ContentTypeForPath(path string) string {
	return ContentTypeFor(filepath.Ext(path))
}

type PutOptions struct {
	ContentType string
}

// StoredObject is what a provider reports back after a successful put.
type StoredObject struct {
	Provider    ProviderName `json:"provider"`
	Key         string       `json:"key"`
	URL         string       `json:"url"`
	Bytes       int64        `json:"bytes"`
	ContentType string       `json:"content_type,omitempty"`
	Format      string       `json:"format,omitempty"`
}

// StreamURL is a synthesized playback URL for one quality.
type StreamURL struct {
	Quality     string `json:"quality"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Fallback    bool   `json:"fallback"`
}

type DeleteOutcome struct {
	Provider ProviderName `json:"provider"`
	OK       bool         `json:"ok"`
	Error    string       `json:"error,omitempty"`
	err      error
}

func NewDeleteOutcome(provider ProviderName, err error) DeleteOutcome {
	o := DeleteOutcome{Provider: provider, OK: err == nil, err: err}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// DeleteReport keeps every provider's outcome of a multi-provider delete.
type DeleteReport struct {
	Key      string          `json:"key"`
	Outcomes []DeleteOutcome `json:"outcomes"`
}

// Succeeded is true when at least one provider deleted the object.
func (r *DeleteReport) Succeeded() bool {
	for _, o := range r.Outcomes {
		if o.OK {
			return true
		}
	}
	return false
}

// Partial is true when some but not all providers deleted the object.
func (r *DeleteReport) Partial() bool {
	if !r.Succeeded() {
		return false
	}
	for _, o := range r.Outcomes {
		if !o.OK {
			return true
		}
	}
	return false
}

// Err returns nil when every provider succeeded, a PartialStorageFailure when only
// some did, and the joined causes when all of them failed.
func (r *DeleteReport) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if !o.OK {
			errs = append(errs, o.cause())
		}
	}
	switch {
	case len(errs) == 0:
		return nil
	case r.Succeeded():
		return NewError(KindPartialStorageFailure, "delete "+r.Key, errors.Join(errs...))
	}
	return errors.Join(errs...)
}

func (o DeleteOutcome) cause() error {
	if o.err != nil {
		return o.err
	}
	return errors.New(string(o.Provider) + ": " + o.Error)
}
