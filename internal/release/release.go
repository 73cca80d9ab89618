// Package release implements the release side of the billing separator
// state machine: when a release schedule fires, the account moves from
// the Quarantine OU back to the Available pool and the schedule is
// retired.
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/isb-tools/billing-separator/internal/accountstore"
	"github.com/isb-tools/billing-separator/internal/eventparse"
	"github.com/isb-tools/billing-separator/internal/logging"
	"github.com/isb-tools/billing-separator/internal/metrics"
	"github.com/isb-tools/billing-separator/internal/orgs"
	"github.com/isb-tools/billing-separator/internal/schedule"
)

// Action describes the outcome of one release invocation.
type Action string

const (
	ActionReleased Action = "RELEASED"
	ActionSkipped  Action = "SKIPPED"
	ActionError    Action = "ERROR"
)

// Result is the outcome record for one release invocation.
type Result struct {
	Success          bool
	Action           Action
	AccountID        string
	Message          string
	SchedulerDeleted bool
}

// AccountGetter reads account records. A nil account with a nil error
// means the account is not tracked.
type AccountGetter interface {
	Get(ctx context.Context, accountID string) (*accountstore.Account, error)
}

// Mover begins transactional account moves between status OUs.
type Mover interface {
	BeginTransactionalMove(account *accountstore.Account, from, to accountstore.Status) orgs.Transaction
}

// ScheduleDeleter deletes a release schedule by name. A missing
// schedule surfaces as schedule.ErrNotFound.
type ScheduleDeleter interface {
	Delete(ctx context.Context, name string) error
}

// Controller drives an account out of quarantine back to Available.
type Controller struct {
	Accounts  AccountGetter
	Mover     Mover
	Schedules ScheduleDeleter
	Metrics   metrics.Publisher
	Logger    *slog.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Process validates the scheduler payload and releases the account.
// Every guard path still deletes the schedule before returning, so a
// stale or anomalous schedule cannot fire forever. A malformed payload
// is a configuration error and fails before any collaborator call.
func (c *Controller) Process(ctx context.Context, payload eventparse.SchedulerPayload) (Result, error) {
	if err := eventparse.ValidatePayload(payload); err != nil {
		return Result{
			Action:  ActionError,
			Message: err.Error(),
		}, err
	}

	accountID := payload.AccountID

	c.Logger.InfoContext(ctx, "Starting release processing",
		logging.ActionUnquarantineStart.Attr(),
		slog.String("account_id", accountID),
		slog.String("quarantined_at", payload.QuarantinedAt),
		slog.String("scheduler_name", payload.SchedulerName),
	)

	account, err := c.Accounts.Get(ctx, accountID)
	if err != nil {
		return c.fail(ctx, accountID, fmt.Errorf("failed to read account record: %w", err))
	}

	// Guard 1: account no longer tracked.
	if account == nil {
		return c.skipAndCleanup(ctx, payload, "account not tracked in the account table")
	}

	// Guard 2: idempotency against repeat fires.
	if account.Status == accountstore.StatusAvailable {
		return c.skipAndCleanup(ctx, payload, "account already in Available status")
	}

	// Guard 3: anomalous state, leave the account alone but retire the
	// schedule.
	if account.Status != accountstore.StatusQuarantine {
		return c.skipAndCleanup(ctx, payload,
			fmt.Sprintf("account not in expected state: status is %s, expected Quarantine", account.Status))
	}

	tx := c.Mover.BeginTransactionalMove(account, accountstore.StatusQuarantine, accountstore.StatusAvailable)
	if err := tx.Begin(ctx); err != nil {
		// Schedule stays in place; the failed invocation is redelivered
		// and guard 2 will skip the move if it actually committed.
		return c.fail(ctx, accountID, fmt.Errorf("release move failed: %w", err))
	}

	c.Logger.InfoContext(ctx, "Account released from quarantine",
		logging.ActionUnquarantineComplete.Attr(),
		slog.String("account_id", accountID),
		slog.String("from_ou", string(accountstore.StatusQuarantine)),
		slog.String("to_ou", string(accountstore.StatusAvailable)),
		slog.Float64("quarantine_hours", c.quarantineHours(payload.QuarantinedAt)),
	)

	if err := c.deleteSchedule(ctx, payload); err != nil {
		return c.fail(ctx, accountID, err)
	}
	c.publishCount(ctx, metrics.MetricAccountsReleased, 1)

	return Result{
		Success:          true,
		Action:           ActionReleased,
		AccountID:        accountID,
		Message:          "account released from quarantine to Available OU",
		SchedulerDeleted: true,
	}, nil
}

// deleteSchedule retires the firing schedule. NotFound counts as
// success (a prior attempt already cleaned up); any other error is
// fatal so redelivery retries the cleanup.
func (c *Controller) deleteSchedule(ctx context.Context, payload eventparse.SchedulerPayload) error {
	err := c.Schedules.Delete(ctx, payload.SchedulerName)
	if err != nil && !errors.Is(err, schedule.ErrNotFound) {
		c.Logger.ErrorContext(ctx, "Failed to delete release schedule",
			logging.ActionSchedulerDeleteFail.Attr(),
			slog.String("account_id", payload.AccountID),
			slog.String("scheduler_name", payload.SchedulerName),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("schedule deletion failed: %w", err)
	}

	c.Logger.InfoContext(ctx, "Release schedule deleted",
		logging.ActionSchedulerDeleted.Attr(),
		slog.String("account_id", payload.AccountID),
		slog.String("scheduler_name", payload.SchedulerName),
		slog.Bool("already_deleted", errors.Is(err, schedule.ErrNotFound)),
	)
	return nil
}

func (c *Controller) skipAndCleanup(ctx context.Context, payload eventparse.SchedulerPayload, reason string) (Result, error) {
	c.Logger.InfoContext(ctx, "Skipping release",
		logging.ActionUnquarantineSkip.Attr(),
		slog.String("account_id", payload.AccountID),
		slog.String("reason", reason),
	)

	if err := c.deleteSchedule(ctx, payload); err != nil {
		return c.fail(ctx, payload.AccountID, err)
	}

	return Result{
		Success:          true,
		Action:           ActionSkipped,
		AccountID:        payload.AccountID,
		Message:          reason,
		SchedulerDeleted: true,
	}, nil
}

func (c *Controller) fail(ctx context.Context, accountID string, err error) (Result, error) {
	c.Logger.ErrorContext(ctx, "Release processing failed",
		logging.ActionHandlerError.Attr(),
		slog.String("account_id", accountID),
		slog.String("error", err.Error()),
	)
	return Result{
		Action:    ActionError,
		AccountID: accountID,
		Message:   err.Error(),
	}, err
}

func (c *Controller) quarantineHours(quarantinedAt string) float64 {
	start, err := time.Parse(time.RFC3339, quarantinedAt)
	if err != nil {
		return 0
	}
	return c.now().Sub(start).Hours()
}

func (c *Controller) publishCount(ctx context.Context, name string, value float64) {
	if c.Metrics == nil {
		return
	}
	if err := c.Metrics.PublishCount(ctx, name, value); err != nil {
		c.Logger.WarnContext(ctx, "Failed to publish metric",
			slog.String("metric", name),
			slog.String("error", err.Error()),
		)
	}
}
