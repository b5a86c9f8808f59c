package root_cmd

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/dialogue"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitAbortedByUser, ExitCode(&dialogue.AbortError{Kind: dialogue.AbortedByUser}))
	assert.Equal(t, ExitAbortedByExtraction, ExitCode(errors.Wrap(&dialogue.AbortError{Kind: dialogue.AbortedByExtraction}, "session")))
}

func TestInitDefaults(t *testing.T) {
	c := &RootCmd{Params: &Params{}}
	assert.NoError(t, c.Init())
	assert.NotNil(t, c.Logger)
	assert.NotNil(t, c.Fs)
}
