// Package validation checks uploads before they reach the lifecycle.
package validation

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedMIMETypes is the set of sniffed container types the Engine can decode.
var allowedMIMETypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/webm":       true,
	"video/x-matroska": true,
	"video/x-msvideo":  true,
	"video/x-ms-wmv":   true,
	"video/x-flv":      true,
}

const magicBytesBufferSize = 512

// asfHeader is the GUID that opens every ASF (wmv) file.
var asfHeader = []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11, 0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C}

// ValidateMagicBytes sniffs up to 512 bytes of reader, rewinds it, and
// reports the detected type and whether it is an accepted video container.
func ValidateMagicBytes(reader io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := io.ReadFull(reader, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, err
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}
	if n == 0 {
		return "application/octet-stream", false, nil
	}
	buf = buf[:n]

	mime = detectVideoContainer(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}
	return mime, allowedMIMETypes[mime], nil
}

func detectVideoContainer(buf []byte) string {
	switch {
	case len(buf) >= 12 && string(buf[4:8]) == "ftyp":
		if string(buf[8:12]) == "qt  " {
			return "video/quicktime"
		}
		return "video/mp4"
	case len(buf) >= 4 && bytes.Equal(buf[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		// EBML: webm and mkv share the header; the doctype tells them apart.
		if bytes.Contains(buf, []byte("matroska")) {
			return "video/x-matroska"
		}
		return "video/webm"
	case len(buf) >= 12 && string(buf[:4]) == "RIFF" && string(buf[8:12]) == "AVI ":
		return "video/x-msvideo"
	case bytes.HasPrefix(buf, asfHeader):
		return "video/x-ms-wmv"
	case len(buf) >= 4 && string(buf[:3]) == "FLV" && buf[3] == 0x01:
		return "video/x-flv"
	}
	return ""
}
