// Package lint runs an external style checker over the source tree.
package lint

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/pkg/errors"
)

// ErrFailed reports that the checker ran and found problems.
var ErrFailed = errors.New("lint failed")

// Run executes command in dir. The check passes when the command exits 0 and
// prints nothing on stdout; on pass "OK" is written to out. Anything the
// checker printed is copied to out either way.
func Run(ctx context.Context, command []string, dir string, out io.Writer) error {
	if len(command) == 0 {
		return errors.New("lint: no command configured")
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = out

	err := cmd.Run()
	_, _ = stdout.WriteTo(out)

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return errors.Wrapf(ErrFailed, "%s exited %d", command[0], exitErr.ExitCode())
	case err != nil:
		return errors.Wrapf(err, "run %s", command[0])
	case stdout.Len() > 0:
		return errors.Wrapf(ErrFailed, "%s reported problems", command[0])
	}

	_, err = io.WriteString(out, "OK\n")
	return err
}
