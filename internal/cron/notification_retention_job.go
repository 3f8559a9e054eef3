package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/localstall/stallmarket-backend/pkg/logger"
)

const defaultNotificationRetentionDays = 30

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationRetentionJob deletes notifications read more than
// RetentionDays ago. Unread notifications are never removed.
type NotificationRetentionJob struct {
	logg          *logger.Logger
	repo          readNotificationPurger
	retentionDays int
	now           func() time.Time
}

func NewNotificationRetentionJob(logg *logger.Logger, repo readNotificationPurger, retentionDays int) (*NotificationRetentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultNotificationRetentionDays
	}
	return &NotificationRetentionJob{logg: logg, repo: repo, retentionDays: retentionDays, now: time.Now}, nil
}

func (j *NotificationRetentionJob) Name() string { return "notification-retention" }

func (j *NotificationRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete read notifications: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retentionDays,
		"rows_deleted":   deleted,
	}), "notification retention complete")
	return nil
}
