package usersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lalith-99/mehfil/internal/chat"
	"github.com/lalith-99/mehfil/internal/models"
	"github.com/lalith-99/mehfil/internal/repository"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ClaimTTL outlives the webhook sender's retry schedule, which gives up
// after a few days.
const ClaimTTL = 72 * time.Hour

// ChatRegistry is the slice of the chat gateway user sync needs.
type ChatRegistry interface {
	UpsertUser(ctx context.Context, u models.ChatUser) error
	DeleteUser(ctx context.Context, userID string) error
}

// Result says what Dispatch did with an event.
type Result string

const (
	ResultApplied   Result = "applied"
	ResultDuplicate Result = "duplicate"
)

type Dispatcher struct {
	users  repository.UserRepository
	chat   ChatRegistry
	ledger repository.EventLedger
	logger *zap.Logger
}

func NewDispatcher(users repository.UserRepository, chat ChatRegistry, ledger repository.EventLedger, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		users:  users,
		chat:   chat,
		ledger: ledger,
		logger: logger,
	}
}

// Dispatch applies ev to the local store and then to the chat registry.
//
// eventID is the delivery id used for dedupe. An empty id skips the ledger;
// both effects are idempotent, so a replay only costs a round trip. On
// failure the claim is released so the sender's retry gets a clean run.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID string, ev Event) (Result, error) {
	effect, err := Plan(ev)
	if err != nil {
		return "", err
	}

	if eventID != "" {
		claimed, err := d.ledger.Claim(ctx, eventID, ClaimTTL)
		if err != nil {
			return "", fmt.Errorf("claim identity event: %w", err)
		}
		if !claimed {
			d.logger.Info("skipping duplicate identity event",
				zap.String("event_id", eventID),
				zap.String("type", string(ev.Type)),
			)
			return ResultDuplicate, nil
		}
	}

	if err := d.apply(ctx, effect); err != nil {
		if eventID != "" {
			if relErr := d.ledger.Release(ctx, eventID); relErr != nil {
				err = multierr.Append(err, relErr)
			}
		}
		d.logger.Error("identity event failed",
			zap.String("event_id", eventID),
			zap.String("type", string(ev.Type)),
			zap.String("external_id", ev.Data.ID),
			zap.Error(err),
		)
		return "", err
	}

	d.logger.Info("identity event applied",
		zap.String("event_id", eventID),
		zap.String("type", string(ev.Type)),
		zap.String("external_id", ev.Data.ID),
	)
	return ResultApplied, nil
}

func (d *Dispatcher) apply(ctx context.Context, effect Effect) error {
	switch e := effect.(type) {
	case UpsertUser:
		if _, err := d.users.Upsert(ctx, e.User); err != nil {
			return fmt.Errorf("store user: %w", err)
		}
		if err := d.chat.UpsertUser(ctx, e.ChatUser()); err != nil {
			return fmt.Errorf("register chat user: %w", err)
		}
	case DeleteUser:
		if _, err := d.users.DeleteByExternalID(ctx, e.ExternalID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		err := d.chat.DeleteUser(ctx, e.ExternalID)
		if errors.Is(err, chat.ErrNotFound) {
			// Already gone: a replay, or a user that never reached chat.
			d.logger.Debug("chat user already absent", zap.String("external_id", e.ExternalID))
			err = nil
		}
		if err != nil {
			return fmt.Errorf("remove chat user: %w", err)
		}
	default:
		return fmt.Errorf("unknown effect %T", effect)
	}
	return nil
}
