package store

import (
	"context"

	"herwigbench/internal/model"
)

// Recorder adapts a Store to the experiment runner's observer hooks.
type Recorder struct {
	Store Store
}

func NewRecorder(s Store) *Recorder {
	return &Recorder{Store: s}
}

func (r *Recorder) ExperimentStarted(ctx context.Context, exp *model.Experiment) error {
	return r.Store.SaveExperiment(ctx, exp)
}

func (r *Recorder) ObserveMeasurement(ctx context.Context, exp *model.Experiment, m model.PhaseMeasurement) error {
	return r.Store.SaveMeasurement(ctx, exp.ID, m)
}

func (r *Recorder) ExperimentFinished(ctx context.Context, exp *model.Experiment) error {
	return r.Store.FinishExperiment(ctx, exp)
}
