package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/internal/domain/progress"
)

// loadSnapshot reads a snapshot file. JSON is a subset of YAML so one decoder
// serves both formats.
func loadSnapshot(path string) (model.Snapshot, error) {
	if path == "" {
		return model.Snapshot{}, fmt.Errorf("%w: --file is required", ErrInvalidFlag)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %w", ErrSnapshotFile, err)
	}

	var snap model.Snapshot
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %w", ErrSnapshotFile, path, err)
	}

	snap.KeyResult.Normalize()
	if err := snap.KeyResult.Validate(); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %w", ErrSnapshotFile, err)
	}
	for i := range snap.QuarterTargets {
		if snap.QuarterTargets[i].KeyResultID == "" {
			snap.QuarterTargets[i].KeyResultID = snap.KeyResult.ID
		}
		if snap.QuarterTargets[i].PlanYear == 0 {
			snap.QuarterTargets[i].PlanYear = snap.KeyResult.PlanYear
		}
	}
	for i := range snap.CheckIns {
		if snap.CheckIns[i].KeyResultID == "" {
			snap.CheckIns[i].KeyResultID = snap.KeyResult.ID
		}
	}
	return snap, nil
}

// env is everything a subcommand needs to evaluate a snapshot.
type env struct {
	snap      model.Snapshot
	engine    *progress.Engine
	formatter *progress.Formatter
	asOf      time.Time
}

func (o *globalOpts) env() (*env, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: --timezone %q: %w", ErrInvalidFlag, o.timezone, err)
	}
	formatter, err := progress.NewFormatter(o.locale)
	if err != nil {
		return nil, fmt.Errorf("%w: --locale: %w", ErrInvalidFlag, err)
	}
	if o.planYear < 0 {
		return nil, fmt.Errorf("%w: --plan-year must not be negative", ErrInvalidFlag)
	}
	if err := o.pace.Validate(); err != nil {
		return nil, fmt.Errorf("%w: --pace-*: %w", ErrInvalidFlag, err)
	}

	var asOf time.Time
	if o.asOf != "" {
		asOf, err = model.ParseTimestamp(o.asOf)
		if err != nil {
			return nil, fmt.Errorf("%w: --as-of: %w", ErrInvalidFlag, err)
		}
	}

	snap, err := loadSnapshot(o.file)
	if err != nil {
		return nil, err
	}

	engine := progress.NewEngine(progress.WithLocation(loc), progress.WithThresholds(o.pace))
	return &env{
		snap:      snap,
		engine:    engine,
		formatter: formatter,
		asOf:      engine.ResolveAsOf(asOf),
	}, nil
}
