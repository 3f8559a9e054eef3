package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localstall/stallmarket-backend/pkg/db/models"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/localstall/stallmarket-backend/pkg/types"
)

const defaultDispatchTimeout = 5 * time.Second

// Event is a notification addressed to a single user.
type Event struct {
	UserID uuid.UUID
	Type   enums.NotificationType
	Params types.Params
}

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Dispatcher persists notifications outside the caller's request path. Events
// are handed over after the originating transaction commits; a failed write is
// logged and dropped.
type Dispatcher struct {
	repo    creator
	logg    *logger.Logger
	timeout time.Duration
	sync    bool
	wg      sync.WaitGroup
}

// DispatcherOption tweaks a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each background write.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// Synchronous makes Dispatch write inline. Used by tests and the cron worker.
func Synchronous() DispatcherOption {
	return func(disp *Dispatcher) {
		disp.sync = true
	}
}

// NewDispatcher builds a Dispatcher writing through repo.
func NewDispatcher(repo creator, logg *logger.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	d := &Dispatcher{repo: repo, logg: logg, timeout: defaultDispatchTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch records every valid event. It never blocks on the store unless the
// dispatcher is synchronous.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) {
	if d == nil || len(events) == 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if d.sync {
		d.write(ctx, events)
		return
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		writeCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()
		d.write(writeCtx, events)
	}()
}

// Wait blocks until in-flight background writes finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) write(ctx context.Context, events []Event) {
	for _, event := range events {
		if event.UserID == uuid.Nil || !event.Type.IsValid() {
			d.logg.Warn(d.logg.WithField(ctx, "notification_type", string(event.Type)), "dropping malformed notification")
			continue
		}
		params := event.Params
		if params == nil {
			params = types.Params{}
		}
		row := &models.Notification{
			UserID: event.UserID,
			Type:   event.Type,
			Params: params,
		}
		if err := d.repo.Create(ctx, row); err != nil {
			logCtx := d.logg.WithFields(ctx, map[string]any{
				"notification_type": string(event.Type),
				"recipient_id":      event.UserID.String(),
			})
			d.logg.Error(logCtx, "failed to store notification", err)
		}
	}
}
