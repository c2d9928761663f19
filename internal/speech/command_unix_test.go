//go:build unix

package speech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEngineListen(t *testing.T) {
	e := NewCommandEngine([]string{"sh", "-c", "echo '  draft a notice  '"})
	text, err := e.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "draft a notice", text)
}

func TestCommandEnginePermissionDenied(t *testing.T) {
	e := NewCommandEngine([]string{"sh", "-c", "echo 'mic: permission denied' >&2; exit 1"})
	_, err := e.Listen(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	e = NewCommandEngine([]string{"sh", "-c", "exit 77"})
	_, err = e.Listen(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCommandEngineSilence(t *testing.T) {
	e := NewCommandEngine([]string{"sh", "-c", "true"})
	_, err := e.Listen(context.Background())
	assert.EqualError(t, err, "no speech detected")
}
