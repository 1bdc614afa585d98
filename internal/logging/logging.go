// Package logging builds the process logger shared by the commands.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	once   sync.Once
	std    *log.Logger
	prefix = "dropview"
)

// Default returns the process logger, writing to stderr at info level.
func Default() *log.Logger {
	once.Do(func() {
		std = New(os.Stderr)
	})
	return std
}

// New returns a logger with the standard options writing to w.
func New(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
	})
	l.SetLevel(log.InfoLevel)
	return l
}

// Discard returns a logger that drops everything. Used when a component is
// given no logger.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// SetLevel sets the level of the process logger from a name such as
// "debug" or "warn".
func SetLevel(name string) error {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	Default().SetLevel(lvl)
	return nil
}
