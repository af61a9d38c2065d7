package validation

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func padBytes(magic []byte, size int) []byte {
	if len(magic) >= size {
		return magic
	}
	out := make([]byte, size)
	copy(out, magic)
	return out
}

func TestValidateMagicBytes(t *testing.T) {
	mkv := append([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81, 0x01, 0x42, 0x82, 0x88}, []byte("matroska")...)
	webm := append([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81, 0x01, 0x42, 0x82, 0x84}, []byte("webm")...)

	tests := []struct {
		name    string
		data    []byte
		mime    string
		allowed bool
	}{
		{"mp4", []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}, "video/mp4", true},
		{"mp4 unknown brand", []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'x', 'y', 'z', 'w'}, "video/mp4", true},
		{"quicktime", []byte{0x00, 0x00, 0x00, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' '}, "video/quicktime", true},
		{"matroska", mkv, "video/x-matroska", true},
		{"webm", webm, "video/webm", true},
		{"avi", []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'A', 'V', 'I', ' '}, "video/x-msvideo", true},
		{"wmv", asfHeader, "video/x-ms-wmv", true},
		{"flv", []byte{'F', 'L', 'V', 0x01, 0x05}, "video/x-flv", true},
		{"wav is not video", []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'A', 'V', 'E'}, "audio/wave", false},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png", false},
		{"html", []byte("<!DOCTYPE html><html><body></body></html>"), "text/html; charset=utf-8", false},
		{"exe", []byte{0x4D, 0x5A, 0x90, 0x00, 0x03, 0x00, 0x00, 0x00}, "application/octet-stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, allowed, err := ValidateMagicBytes(bytes.NewReader(padBytes(tt.data, 64)))

			require.NoError(t, err)
			assert.Equal(t, tt.mime, mime)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestValidateMagicBytes_Empty(t *testing.T) {
	mime, allowed, err := ValidateMagicBytes(bytes.NewReader(nil))

	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", mime)
	assert.False(t, allowed)
}

func TestValidateMagicBytes_RewindsReader(t *testing.T) {
	data := padBytes([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}, 2048)
	reader := bytes.NewReader(data)

	_, _, err := ValidateMagicBytes(reader)
	require.NoError(t, err)

	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Len(t, rest, len(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error)       { return 0, errors.New("disk gone") }
func (failingReader) Seek(int64, int) (int64, error) { return 0, nil }

func TestValidateMagicBytes_ReadError(t *testing.T) {
	_, allowed, err := ValidateMagicBytes(failingReader{})

	assert.Error(t, err)
	assert.False(t, allowed)
}
