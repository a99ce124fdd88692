package mylogger

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"runtime"
)

// generateBootID returns a short random identifier shared by every log line of
// one process lifetime, so restarts are distinguishable in aggregated logs.
func generateBootID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "boot-unknown"
	}
	return "boot-" + hex.EncodeToString(b)
}

// captureFrames collects stack trace frames
func captureFrames(skip, depth int) []stackFrame {
	pc := make([]uintptr, depth)
	n := runtime.Callers(skip, pc)
	frames := runtime.CallersFrames(pc[:n])

	var stack []stackFrame
	for {
		frame, more := frames.Next()
		stack = append(stack, stackFrame{
			Func:   filepath.Base(frame.Function),
			Source: filepath.Join(filepath.Base(filepath.Dir(frame.File)), filepath.Base(frame.File)),
			Line:   frame.Line,
		})
		if !more {
			break
		}
	}
	return stack
}

// stackFrame structure for capturing the stack trace
type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}
