package root_cmd

import (
	"errors"

	"github.com/spf13/afero"
	"go.uber.org/atomic"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/dialogue"
)

type Params struct {
	Verbose    bool
	Silent     bool
	ConfigFile string

	IsCanceled *atomic.Bool
	CancelFunc func()
}

type RootCmd struct {
	*Params

	Logger logger.Logger
	Fs     afero.Fs
}

func (c *RootCmd) Init() error {
	if c.Logger == nil {
		c.Logger = logger.New()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return nil
}

const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitAbortedByExtraction = 3
	ExitAbortedByUser       = 130
)

// ExitCode maps the outcome of a command to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var abortErr *dialogue.AbortError
	if errors.As(err, &abortErr) {
		if abortErr.Kind == dialogue.AbortedByUser {
			return ExitAbortedByUser
		}
		return ExitAbortedByExtraction
	}
	return ExitFailure
}
