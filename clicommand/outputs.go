package clicommand

import (
	"errors"
	"maps"
	"slices"

	"github.com/actionkit/actionkit/internal/actions"
	"github.com/actionkit/actionkit/logger"
)

// setOutputs writes outputs in name order. Outside of a workflow there is
// no output file, which is only worth a warning for commands whose
// outputs are informational.
func setOutputs(r *actions.Runner, l logger.Logger, outputs map[string]string) error {
	if err := r.CheckOutputFile(); err != nil {
		if errors.Is(err, actions.ErrChannelUnavailable) {
			l.Warn("Not setting step outputs: %v", err)
			return nil
		}
		return err
	}

	for _, name := range slices.Sorted(maps.Keys(outputs)) {
		if err := r.SetOutput(name, outputs[name]); err != nil {
			return err
		}
	}
	return nil
}
