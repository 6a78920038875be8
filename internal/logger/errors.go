package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrAppNameIsEmpty is returned when [Log] AppName is missing.
	ErrAppNameIsEmpty = errors.New("logger: [Log] AppName must be set")

	// ErrServiceNameIsEmpty is returned when [Log] ServiceName is missing.
	ErrServiceNameIsEmpty = errors.New("logger: [Log] ServiceName must be set")
)

// writeFailures receives events zerolog failed to write.
var writeFailures io.Writer = os.Stderr //nolint:gochecknoglobals

// ErrorHandler reports an event zerolog could not write. It must not log
// through zerolog itself.
func ErrorHandler(err error) {
	_, _ = fmt.Fprintf(writeFailures, "rrdm logger: dropped event: %v\n", err)
}
