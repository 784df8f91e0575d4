package lint

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func needs(t *testing.T, bin string) {
	t.Helper()
	if _, err := exec.LookPath(bin); err != nil {
		t.Skipf("%s not available", bin)
	}
}

func TestRunPass(t *testing.T) {
	needs(t, "true")

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), []string{"true"}, t.TempDir(), &out))
	require.Equal(t, "OK\n", out.String())
}

func TestRunNonZeroExit(t *testing.T) {
	needs(t, "false")

	var out bytes.Buffer
	err := Run(context.Background(), []string{"false"}, t.TempDir(), &out)
	require.True(t, errors.Is(err, ErrFailed), "%v", err)
	require.NotContains(t, out.String(), "OK")
}

func TestRunOutputIsFailure(t *testing.T) {
	needs(t, "echo")

	var out bytes.Buffer
	err := Run(context.Background(), []string{"echo", "main.go"}, t.TempDir(), &out)
	require.True(t, errors.Is(err, ErrFailed), "%v", err)
	require.Equal(t, "main.go\n", out.String())
}

func TestRunMissingCommand(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), []string{"definitely-not-a-real-linter"}, t.TempDir(), &out)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrFailed))

	require.Error(t, Run(context.Background(), nil, t.TempDir(), &out))
}
