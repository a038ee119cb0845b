// Package experiment manages prediction experiment runs: lifecycle,
// prediction recording, and end-to-end orchestration.
package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/store"
)

// Manager owns the experiment lifecycle: created → running (implicit,
// the orchestrator is mid-loop) → completed. There is no failed state;
// an experiment left without completed_at did not finish.
type Manager struct {
	store store.Store
}

func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// Create inserts a new experiment with zeroed counters.
func (m *Manager) Create(ctx context.Context, description string, metadata map[string]any) (*model.Experiment, error) {
	now := time.Now().UTC()
	exp := &model.Experiment{
		Key:         uuid.New().String(),
		Description: description,
		Metadata:    metadata,
		CreatedAt:   now,
		StartedAt:   now,
	}
	if err := m.store.CreateExperiment(ctx, exp); err != nil {
		return nil, eris.Wrap(err, "experiment: create")
	}
	zap.L().Info("experiment created",
		zap.String("experiment", exp.Key),
		zap.String("description", description))
	return exp, nil
}

// UpdateMetrics overwrites the experiment's counters. Last write wins;
// calls are not additive and may repeat.
func (m *Manager) UpdateMetrics(ctx context.Context, key string, metrics model.ExperimentMetrics) error {
	return m.store.UpdateExperimentMetrics(ctx, key, metrics)
}

// Complete stamps completed_at exactly once. A repeat call is a no-op:
// the first timestamp stands.
func (m *Manager) Complete(ctx context.Context, key string) error {
	err := m.store.CompleteExperiment(ctx, key, time.Now().UTC())
	if err == nil {
		return nil
	}
	if eris.Is(err, store.ErrNotFound) {
		exp, getErr := m.store.GetExperiment(ctx, key)
		if getErr == nil && exp.Completed() {
			zap.L().Debug("experiment already completed", zap.String("experiment", key))
			return nil
		}
	}
	return eris.Wrapf(err, "experiment: complete %s", key)
}
