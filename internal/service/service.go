package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/attendance-server-go/internal/config"
	"github.com/openclaw/attendance-server-go/internal/database"
	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/sse"
)

// TxRunner runs fn inside a single database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// EventPublisher delivers live events for a session. *sse.Broker satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID string, event sse.Event) error
}

// SideEffects runs best-effort work in isolated goroutines. A failure or panic
// in one task is logged and never reaches the caller that scheduled it.
type SideEffects struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewSideEffects() *SideEffects {
	return &SideEffects{timeout: config.SideEffectTimeout}
}

// Go schedules fn detached from ctx cancellation but bounded by the side-effect timeout.
func (s *SideEffects) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				log.Error().
					Str("task", name).
					Str("panic", fmt.Sprint(p)).
					Bytes("stack", debug.Stack()).
					Msg("side effect panicked")
			}
		}()

		if err := fn(taskCtx); err != nil {
			log.Error().Err(err).Str("task", name).Msg("side effect failed")
		}
	}()
}

// Wait blocks until every scheduled task has finished.
func (s *SideEffects) Wait() {
	s.wg.Wait()
}

func publishEvent(ctx context.Context, publisher EventPublisher, sessionID, eventType string, payload any) error {
	if publisher == nil {
		return nil
	}
	event, err := sse.NewEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return publisher.Publish(ctx, sessionID, event)
}

// findOwnedSession answers missing and foreign sessions identically.
func findOwnedSession(
	ctx context.Context,
	sessions repository.SessionRepository,
	owner *model.Owner,
	sessionID string,
) (*model.Session, error) {
	if owner == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	session, err := sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || session.OwnerID != owner.ID {
		return nil, apperrors.SessionNotOwned()
	}
	return session, nil
}
