package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindbots/voicemesh/worker"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "voicemesh "))
}

func TestStartDryRun(t *testing.T) {
	root := newRootCmd(func(o *worker.Options) {
		o.EntrypointFunc = func(jc *worker.JobContext) error { return nil }
	})
	root.SetArgs([]string{"start", "--dry-run", "--room", "room-1", "--url", "ws://example:7880/rtc"})

	require.NoError(t, root.Execute())
}

func TestStartRequiresEntrypoint(t *testing.T) {
	root := newRootCmd()
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"start", "--dry-run"})

	assert.Error(t, root.Execute())
}

func TestStartRequiresRoom(t *testing.T) {
	root := newRootCmd(func(o *worker.Options) {
		o.EntrypointFunc = func(jc *worker.JobContext) error { return nil }
	})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"start"})

	assert.Error(t, root.Execute())
}
