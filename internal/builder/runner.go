package builder

import (
	"os"
	"os/exec"

	"github.com/crater-build/crater/internal/msg"
)

// Runner runs an external command to completion in a working directory. The
// orchestrator only cares whether the command succeeded; compiler and
// runtime output goes straight to the terminal.
type Runner interface {
	Run(dir, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(dir, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = &msg.IndentWriter{Indent: "  ", W: os.Stdout}
	cmd.Stderr = &msg.IndentWriter{Indent: "  ", W: os.Stderr}
	return cmd.Run()
}
