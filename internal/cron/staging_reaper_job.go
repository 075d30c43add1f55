package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
)

const defaultStagingRetention = 24 * time.Hour

type StagingReaperJobParams struct {
	Logger    *logger.Logger
	Assets    stagingReaper
	Retention time.Duration
}

type stagingReaper interface {
	ReapStaging(ctx context.Context, olderThan time.Duration) (int, error)
}

// NewStagingReaperJob deletes staging areas abandoned by interrupted creates.
func NewStagingReaperJob(params StagingReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assets == nil {
		return nil, fmt.Errorf("asset store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultStagingRetention
	}
	return &stagingReaperJob{
		logg:      params.Logger,
		assets:    params.Assets,
		retention: retention,
	}, nil
}

type stagingReaperJob struct {
	logg      *logger.Logger
	assets    stagingReaper
	retention time.Duration
}

func (j *stagingReaperJob) Name() string { return "staging-reaper" }

func (j *stagingReaperJob) Run(ctx context.Context) error {
	removed, err := j.assets.ReapStaging(ctx, j.retention)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention":     j.retention.String(),
		"areas_removed": removed,
	})
	if err != nil {
		return fmt.Errorf("reap staging: %w", err)
	}
	j.logg.Info(logCtx, "staging reaper complete")
	return nil
}
