package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/output"
)

// outputError renders err in the selected machine format before returning
// it, so --json/--yaml consumers never have to parse stderr.
func outputError(w io.Writer, err error) error {
	switch {
	case jsonOutput:
		_ = output.EncodeJSON(w, output.NewError(err.Error()))
	case yamlOutput:
		_ = output.EncodeYAML(w, output.NewError(err.Error()))
	}
	return err
}

// emit writes v as JSON or YAML when a machine format is selected and
// reports whether it did.
func emit(w io.Writer, v any) (bool, error) {
	switch {
	case jsonOutput:
		return true, output.EncodeJSON(w, v)
	case yamlOutput:
		return true, output.EncodeYAML(w, v)
	}
	return false, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
