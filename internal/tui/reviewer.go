package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/resolution"
)

// Reviewer runs one bubbletea program per review prompt. It satisfies the
// resolution.Reviewer port; escape or ctrl+c surfaces as an aborted error
// so the pipeline stops without flushing.
type Reviewer struct {
	log *logger.Logger
}

// NewReviewer creates the terminal reviewer.
func NewReviewer(log *logger.Logger) *Reviewer {
	return &Reviewer{log: log}
}

// Review blocks until the operator decides or aborts.
func (r *Reviewer) Review(ctx context.Context, v resolution.ComparisonView) (resolution.Decision, error) {
	program := tea.NewProgram(newModel(v), tea.WithContext(ctx), tea.WithAltScreen())

	out, err := program.Run()
	if err != nil {
		if ctx.Err() != nil {
			return resolution.Decision{}, errors.Aborted("review interrupted").WithCause(ctx.Err())
		}
		return resolution.Decision{}, errors.Wrap(err, "running review program")
	}

	final, ok := out.(model)
	if !ok {
		return resolution.Decision{}, errors.Invariantf("review program returned %T", out)
	}
	if final.aborted || !final.done {
		return resolution.Decision{}, errors.Aborted("review cancelled by operator")
	}

	r.log.Debug("review decision",
		"candidate", displayName(v.Candidate),
		"district", v.District.Name(),
		"choice", final.decision.Choice.String())
	return final.decision, nil
}
