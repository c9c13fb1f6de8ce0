// Package stacktrace reports the project frames of the current goroutine.
package stacktrace

import (
	"runtime"
	"strconv"
	"strings"
)

const maxDepth = 32

// Internal returns "internal/<pkg>/<file>.go:<line>" entries for the frames
// above the caller, skipping anything outside the module's internal tree.
func Internal(skip int) []string {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	out := make([]string, 0, n)
	for {
		f, more := frames.Next()
		if i := strings.Index(f.File, "/internal/"); i >= 0 {
			out = append(out, f.File[i+1:]+":"+strconv.Itoa(f.Line))
		}
		if !more {
			break
		}
	}
	return out
}
