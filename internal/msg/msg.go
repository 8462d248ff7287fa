package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

func Info(format string, a ...any) {
	emit(color.HiGreenString("info"), format, a...)
}

func Warn(format string, a ...any) {
	emit(color.YellowString("warn"), format, a...)
}

func Error(format string, a ...any) {
	emit(color.HiRedString("error"), format, a...)
}

func Fatal(format string, a ...any) {
	emit(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func emit(prefix, format string, a ...any) {
	fmt.Printf("%s: %s\n", prefix, fmt.Sprintf(format, a...))
}

// IndentWriter prefixes every line written through it with Indent. Used to
// visually nest external process output (compiler, runtime) under the
// orchestrator's own messages.
type IndentWriter struct {
	Indent  string
	W       io.Writer
	midLine bool
}

func (w *IndentWriter) Write(p []byte) (int, error) {
	start := 0
	for i, c := range p {
		if !w.midLine {
			if _, err := io.WriteString(w.W, w.Indent); err != nil {
				return start, err
			}
			w.midLine = true
		}
		if c == '\n' || c == '\r' {
			if _, err := w.W.Write(p[start : i+1]); err != nil {
				return start, err
			}
			start = i + 1
			w.midLine = false
		}
	}
	if start < len(p) {
		if _, err := w.W.Write(p[start:]); err != nil {
			return start, err
		}
	}
	return len(p), nil
}
