package cascade

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	RootUser  = "user"
	RootStall = "stall"
)

// Report summarizes one cascading delete.
type Report struct {
	Root   string           `json:"root"`
	RootID uuid.UUID        `json:"rootId"`
	Found  bool             `json:"found"`
	Rows   map[string]int64 `json:"rows"`
	Files  []string         `json:"files"`
}

func (r *Report) add(kind string, n int64) {
	if n <= 0 {
		return
	}
	r.Rows[kind] += n
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type fileCleaner interface {
	Cleanup(ctx context.Context, paths []string) error
}

type metricsRecorder interface {
	IncCascadeDeletion(root, outcome string)
	AddCascadeRows(rows map[string]int64)
}

// Service removes a user or stall together with everything that references it.
type Service interface {
	DeleteUser(ctx context.Context, userID uuid.UUID) (*Report, error)
	DeleteStall(ctx context.Context, stallID uuid.UUID) (*Report, error)
}

// ServiceParams groups the cascade dependencies. Files and Metrics are optional.
type ServiceParams struct {
	Tx      txRunner
	Files   fileCleaner
	Metrics metricsRecorder
	Logger  *logger.Logger
}

type service struct {
	tx      txRunner
	files   fileCleaner
	metrics metricsRecorder
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      params.Tx,
		files:   params.Files,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) DeleteUser(ctx context.Context, userID uuid.UUID) (*Report, error) {
	return s.execute(ctx, RootUser, userID, &models.User{}, userPlan)
}

// DeleteStall also removes soft-deleted (closed) stalls.
func (s *service) DeleteStall(ctx context.Context, stallID uuid.UUID) (*Report, error) {
	return s.execute(ctx, RootStall, stallID, &models.Stall{}, stallPlan)
}

func (s *service) execute(ctx context.Context, root string, id uuid.UUID, model any, p *plan) (*Report, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, root+" id required")
	}
	report := &Report{Root: root, RootID: id, Rows: map[string]int64{}, Files: []string{}}
	ctx = s.logg.WithEntity(s.logg.WithField(ctx, "cascade_root", root), root, id.String())

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Unscoped().Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		report.Found = true
		exec := &executor{tx: tx, report: report}
		return exec.run(ctx, p, []uuid.UUID{id})
	})
	if err != nil {
		s.record(root, "failed", nil)
		return nil, db.TxError(err, "cascading delete of "+root+" "+id.String())
	}

	if !report.Found {
		s.record(root, "noop", nil)
		s.logg.Info(ctx, "cascade target already gone")
		return report, nil
	}
	s.record(root, "deleted", report.Rows)
	s.logg.Info(s.logg.WithField(ctx, "rows", report.Rows), "cascade delete committed")

	if s.files != nil && len(report.Files) > 0 {
		if err := s.files.Cleanup(ctx, report.Files); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cascade file cleanup incomplete")
		}
	}
	return report, nil
}

func (s *service) record(root, outcome string, rows map[string]int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncCascadeDeletion(root, outcome)
	if rows != nil {
		s.metrics.AddCascadeRows(rows)
	}
}
