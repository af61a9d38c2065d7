package logger

import (
	"io"
	"log"
	"os"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

const logFlags = log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

func init() {
	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Warn = log.New(os.Stdout, "WARN: ", logFlags)
	Error = log.New(os.Stderr, "ERROR: ", logFlags)
	Debug = log.New(io.Discard, "DEBUG: ", logFlags)
}

// SetDebug routes the Debug logger to stdout when enabled and discards it otherwise.
func SetDebug(enabled bool) {
	if enabled {
		Debug.SetOutput(os.Stdout)
		return
	}
	Debug.SetOutput(io.Discard)
}

// SetOutput redirects every level to w. Tests use it to capture log lines.
func SetOutput(w io.Writer) {
	Info.SetOutput(w)
	Warn.SetOutput(w)
	Error.SetOutput(w)
	Debug.SetOutput(w)
}
