package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{
		"sync", "roles", "departments", "employees", "vacations", "leaves",
		"terminations", "cache", "token", "history",
	} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandGlobalFlags(t *testing.T) {
	root := NewRootCommand()
	for _, flag := range []string{"config", "verbose", "log-file"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %s", flag)
	}
}

func TestCommandsFailWithoutConfig(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"cache", "status", "--config", "/nonexistent/hrbridge.yaml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError,
		GetExitCode(WrapExitError(ExitCommandError, "boom", nil)))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitFailure, "sync finished with errors", errors.New("stage failed"))
	assert.Contains(t, wrapped.Error(), "stage failed")
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}
