package provider

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"videos/abc/original.mp4", "videos/abc/original.mp4"},
		{"/leading/slash.mp4", "leading/slash.mp4"},
		{"videos/my clip.mp4", "videos/my%20clip.mp4"},
		{"videos/a?b#c.mp4", "videos/a%3Fb%23c.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeKey(tt.key))
		})
	}
}

func TestHLSPath(t *testing.T) {
	assert.Equal(t, "videos/vid-1/720p/index.m3u8", HLSPath("vid-1", "720p"))
}

func TestQualityHeight(t *testing.T) {
	tests := []struct {
		quality string
		want    int
	}{
		{"720p", 720},
		{"1080P", 1080},
		{" 240p ", 240},
		{"480", 480},
		{"hd", 0},
		{"", 0},
		{"-5p", 0},
	}

	for _, tt := range tests {
		t.Run(tt.quality, func(t *testing.T) {
			assert.Equal(t, tt.want, QualityHeight(tt.quality))
		})
	}
}

func TestCountingReader(t *testing.T) {
	r := &CountingReader{R: strings.NewReader("twelve bytes")}

	data, err := io.ReadAll(r)

	require.NoError(t, err)
	assert.Equal(t, "twelve bytes", string(data))
	assert.Equal(t, int64(12), r.N)
}
