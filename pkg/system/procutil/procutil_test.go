//go:build linux

package procutil

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	me := os.Getpid()
	assert.True(t, Exists(me), "current PID should exist")
	assert.False(t, Exists(999999), "very large PID should not exist")
}

func TestResolveComms_NoNames(t *testing.T) {
	_, err := ResolveComms(nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoComms))
}

func TestResolveComms_SelfComm(t *testing.T) {
	comm, err := readComm(os.Getpid())
	require.NoError(t, err)

	pids, err := ResolveComms([]string{comm})
	require.NoError(t, err)
	assert.Contains(t, pids, os.Getpid())
}

func TestResolveComms_UnmatchedName(t *testing.T) {
	_, err := ResolveComms([]string{"definitely-not-a-running-process-xyz"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCommNotFound))
}
