package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gnemet/SlideEdit/internal/pptx"
)

// Completer rewrites text according to a system prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, text string) (string, error)
}

// Change is one model proposal for one text unit.
type Change struct {
	Slide     int
	ShapeID   int
	ShapeName string
	ShapeKind string
	Notes     bool
	Unit      int
	Original  string
	Proposed  string
	// Applied is false for dry runs.
	Applied bool
}

// Recorder receives every change as it is produced.
type Recorder interface {
	Record(ctx context.Context, c Change) error
}

// Pipeline edits a presentation one text unit at a time.
type Pipeline struct {
	Completer    Completer
	Granularity  pptx.Granularity
	IncludeNotes bool
	Recorders    []Recorder
	Logger       *slog.Logger
}

// Process sends every text unit Walk yields for p to the model with the system
// prompt of mode and writes the reply back into the unit. With dryRun the
// proposals are logged and recorded but the presentation is left untouched.
// It returns the number of units edited (or, for a dry run, the number that
// would have been).
//
// The first model or recorder error stops the run. Units edited before it
// keep their new text in memory; nothing is written to disk here.
func (pl *Pipeline) Process(ctx context.Context, p *pptx.Presentation, mode string, dryRun bool) (int, error) {
	systemPrompt, err := ResolveMode(mode)
	if err != nil {
		return 0, err
	}
	logger := pl.Logger
	if logger == nil {
		logger = slog.Default()
	}

	edited := 0
	opts := pptx.WalkOptions{Granularity: pl.Granularity, IncludeNotes: pl.IncludeNotes}
	for unit := range pptx.Walk(p, opts) {
		if err := ctx.Err(); err != nil {
			return edited, err
		}

		original := unit.Text()

		shape := unit.Shape()
		log := logger.With("slide", unit.Slide, "shape", shape.Name, "unit", unit.Index)
		log.Debug("requesting edit", "mode", mode, "chars", len(original))

		proposed, err := pl.Completer.Complete(ctx, systemPrompt, original)
		if err != nil {
			return edited, fmt.Errorf("slide %d, shape %q: %w", unit.Slide, shape.Name, err)
		}

		change := Change{
			Slide:     unit.Slide,
			ShapeID:   shape.ID,
			ShapeName: shape.Name,
			ShapeKind: shape.Kind,
			Notes:     shape.Notes,
			Unit:      unit.Index,
			Original:  original,
			Proposed:  proposed,
			Applied:   !dryRun,
		}

		if dryRun {
			log.Info("dry run", "original", original, "proposed", proposed)
		} else {
			unit.SetText(proposed)
			log.Debug("edited", "original", original, "proposed", proposed)
		}
		edited++

		for _, r := range pl.Recorders {
			if err := r.Record(ctx, change); err != nil {
				return edited, fmt.Errorf("record change on slide %d: %w", unit.Slide, err)
			}
		}
	}

	return edited, nil
}
