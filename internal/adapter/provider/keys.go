// Package provider holds the helpers shared by the storage provider backends.
package provider

import (
	"io"
	"net/url"
	"strconv"
	"strings"
)

// EscapeKey escapes each path segment of an object key for use in a URL.
func EscapeKey(key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// HLSPath is the path convention for a rendition playlist inside a bucket.
func HLSPath(videoID, quality string) string {
	return "videos/" + url.PathEscape(videoID) + "/" + url.PathEscape(quality) + "/index.m3u8"
}

// QualityHeight parses the height out of tags like "720p". It returns 0 when
// the tag has no numeric height.
func QualityHeight(quality string) int {
	q := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(quality)), "p")
	h, err := strconv.Atoi(q)
	if err != nil || h <= 0 {
		return 0
	}
	return h
}

// CountingReader records how many bytes were read through it.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}
