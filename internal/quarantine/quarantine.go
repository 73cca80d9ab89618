// Package quarantine implements the quarantine side of the billing
// separator state machine: it intercepts reclaimed accounts on their
// way back to the Available pool, parks them in the Quarantine OU for
// the hold period, and schedules their release.
package quarantine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsevents "github.com/aws/aws-lambda-go/events"

	"github.com/isb-tools/billing-separator/internal/accountstore"
	"github.com/isb-tools/billing-separator/internal/eventparse"
	"github.com/isb-tools/billing-separator/internal/logging"
	"github.com/isb-tools/billing-separator/internal/metrics"
	"github.com/isb-tools/billing-separator/internal/orgs"
	"github.com/isb-tools/billing-separator/internal/schedule"
)

// HoldDuration is how long an account stays quarantined before its
// release schedule fires. The hold lets billing data from the previous
// leaseholder settle before the next occupant's reporting window opens.
const HoldDuration = 72 * time.Hour

// Action describes the outcome of processing one move event.
type Action string

const (
	ActionQuarantined Action = "QUARANTINED"
	ActionSkipped     Action = "SKIPPED"
	ActionError       Action = "ERROR"
)

// Result is the outcome record for one move event.
type Result struct {
	Success       bool
	Action        Action
	AccountID     string
	Message       string
	SchedulerName string
}

// AccountGetter reads account records. A nil account with a nil error
// means the account is not tracked.
type AccountGetter interface {
	Get(ctx context.Context, accountID string) (*accountstore.Account, error)
}

// OuResolver resolves a sandbox OU by name, fresh on every call.
type OuResolver interface {
	Resolve(ctx context.Context, name string) (orgs.Ou, error)
}

// Mover begins transactional account moves between status OUs.
type Mover interface {
	BeginTransactionalMove(account *accountstore.Account, from, to accountstore.Status) orgs.Transaction
}

// TagStore checks and removes the bypass tag. Both operations can fail
// independently.
type TagStore interface {
	HasTag(ctx context.Context, accountID, key string) (bool, error)
	RemoveTag(ctx context.Context, accountID, key string) error
}

// ScheduleCreator creates the delayed release for a quarantined account.
type ScheduleCreator interface {
	CreateRelease(ctx context.Context, name string, fireAt time.Time, payload eventparse.SchedulerPayload) error
}

// Controller drives an account from its reclaim move into quarantine.
type Controller struct {
	Accounts  AccountGetter
	Ous       OuResolver
	Mover     Mover
	Tags      TagStore
	Schedules ScheduleCreator
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

// Process runs the guard sequence and, when no guard matches, performs
// the Available -> Quarantine move and creates the delayed release.
// Guard outcomes are successes (SKIPPED); only dependency failures
// return an error, which makes the item eligible for redelivery.
func (c *Controller) Process(ctx context.Context, event eventparse.MoveEvent) (Result, error) {
	accountID := event.AccountID

	c.Logger.InfoContext(ctx, "Starting quarantine processing",
		logging.ActionQuarantineStart.Attr(),
		slog.String("account_id", accountID),
		slog.String("source_parent_id", event.SourceParentID),
		slog.String("event_id", event.EventID),
		slog.String("event_time", event.EventTime),
	)

	// Guard 1: account must be tracked.
	account, err := c.Accounts.Get(ctx, accountID)
	if err != nil {
		return c.fail(ctx, accountID, fmt.Errorf("failed to read account record: %w", err))
	}
	if account == nil {
		return c.skip(ctx, accountID, "account not tracked in the account table"), nil
	}

	// Guard 2: idempotency against redelivery.
	if account.Status == accountstore.StatusQuarantine {
		return c.skip(ctx, accountID, "account already in Quarantine status"), nil
	}

	// Guard 3: only reclaim-path moves are intercepted. The CleanUp OU
	// id is looked up fresh so renamed or recreated OUs are honored.
	cleanUpOu, err := c.Ous.Resolve(ctx, string(accountstore.StatusCleanUp))
	if err != nil {
		return c.fail(ctx, accountID, fmt.Errorf("failed to resolve CleanUp OU: %w", err))
	}
	if event.SourceParentID != cleanUpOu.ID {
		return c.skip(ctx, accountID, "source OU is not CleanUp"), nil
	}

	// Guard 4: operator bypass tag. A failed tag query is fail-open:
	// the hold is a cost control, so an unreachable opt-out must not
	// suppress it.
	if bypassed := c.checkBypass(ctx, accountID); bypassed {
		return c.skip(ctx, accountID, "bypass tag present, quarantine skipped"), nil
	}

	// Action: move Available -> Quarantine.
	tx := c.Mover.BeginTransactionalMove(account, accountstore.StatusAvailable, accountstore.StatusQuarantine)
	if err := tx.Begin(ctx); err != nil {
		return c.fail(ctx, accountID, fmt.Errorf("quarantine move failed: %w", err))
	}

	c.Logger.InfoContext(ctx, "Account moved to quarantine",
		logging.ActionQuarantineComplete.Attr(),
		slog.String("account_id", accountID),
		slog.String("from_ou", string(accountstore.StatusAvailable)),
		slog.String("to_ou", string(accountstore.StatusQuarantine)),
	)

	now := c.now()
	name := schedule.ReleaseName(accountID, now)
	fireAt := now.Add(HoldDuration)
	payload := eventparse.SchedulerPayload{
		AccountID:     accountID,
		QuarantinedAt: now.UTC().Format(time.RFC3339),
		SchedulerName: name,
	}

	if err := c.Schedules.CreateRelease(ctx, name, fireAt, payload); err != nil {
		// The move already committed. Fail anyway: a quarantined
		// account without a release schedule must not go unnoticed, and
		// redelivery will hit guard 2 and retry only this step.
		c.Logger.ErrorContext(ctx, "Failed to create release schedule",
			logging.ActionSchedulerCreateFail.Attr(),
			slog.String("account_id", accountID),
			slog.String("scheduler_name", name),
			slog.String("error", err.Error()),
		)
		return c.fail(ctx, accountID, fmt.Errorf("release schedule creation failed for account %s: %w", accountID, err))
	}

	c.Logger.InfoContext(ctx, "Release schedule created",
		logging.ActionSchedulerCreated.Attr(),
		slog.String("account_id", accountID),
		slog.String("scheduler_name", name),
		slog.Time("fire_at", fireAt),
	)
	c.publishCount(ctx, metrics.MetricAccountsQuarantined, 1)

	return Result{
		Success:       true,
		Action:        ActionQuarantined,
		AccountID:     accountID,
		Message:       fmt.Sprintf("account quarantined, release scheduled for %s", fireAt.UTC().Format(time.RFC3339)),
		SchedulerName: name,
	}, nil
}

// checkBypass reports whether the bypass tag is set. When it is, the
// tag is removed best-effort so the next cycle quarantines normally.
func (c *Controller) checkBypass(ctx context.Context, accountID string) bool {
	present, err := c.Tags.HasTag(ctx, accountID, orgs.BypassTagKey)
	if err != nil {
		c.Logger.WarnContext(ctx, "Bypass tag check failed, proceeding with quarantine",
			logging.ActionTagCheckFailed.Attr(),
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if !present {
		return false
	}

	c.Logger.InfoContext(ctx, "Quarantine bypassed by tag",
		logging.ActionQuarantineBypassTag.Attr(),
		slog.String("account_id", accountID),
		slog.String("tag_key", orgs.BypassTagKey),
	)

	if err := c.Tags.RemoveTag(ctx, accountID, orgs.BypassTagKey); err != nil {
		// Removal is best effort; the skip stands either way.
		c.Logger.WarnContext(ctx, "Failed to remove bypass tag",
			logging.ActionTagRemovalFailed.Attr(),
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
	c.publishCount(ctx, metrics.MetricQuarantineBypassed, 1)

	return true
}

func (c *Controller) skip(ctx context.Context, accountID, reason string) Result {
	c.Logger.InfoContext(ctx, "Skipping quarantine",
		logging.ActionQuarantineSkip.Attr(),
		slog.String("account_id", accountID),
		slog.String("reason", reason),
	)
	return Result{
		Success:   true,
		Action:    ActionSkipped,
		AccountID: accountID,
		Message:   reason,
	}
}

func (c *Controller) fail(ctx context.Context, accountID string, err error) (Result, error) {
	return Result{
		Success:   false,
		Action:    ActionError,
		AccountID: accountID,
		Message:   err.Error(),
	}, err
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

// HandleBatch validates the inbound SQS batch once and processes each
// event sequentially with per-item failure isolation. A validation
// failure fails the whole batch: every message id is reported back so
// the full batch is redelivered.
func (c *Controller) HandleBatch(ctx context.Context, sqsEvent awsevents.SQSEvent) (awsevents.SQSEventResponse, error) {
	parsed, err := eventparse.ParseBatch(sqsEvent.Records)
	if err != nil {
		c.Logger.ErrorContext(ctx, "Batch validation failed",
			logging.ActionParseError.Attr(),
			slog.Int("record_count", len(sqsEvent.Records)),
			slog.String("error", err.Error()),
		)

		failures := make([]awsevents.SQSBatchItemFailure, 0, len(sqsEvent.Records))
		for _, record := range sqsEvent.Records {
			failures = append(failures, awsevents.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return awsevents.SQSEventResponse{BatchItemFailures: failures}, nil
	}

	var failures []awsevents.SQSBatchItemFailure
	for i, event := range parsed {
		messageID := sqsEvent.Records[i].MessageId

		if _, err := c.Process(ctx, event); err != nil {
			c.Logger.ErrorContext(ctx, "Quarantine processing failed",
				logging.ActionHandlerError.Attr(),
				slog.String("account_id", event.AccountID),
				slog.String("event_id", event.EventID),
				slog.String("message_id", messageID),
				slog.String("error", err.Error()),
			)
			failures = append(failures, awsevents.SQSBatchItemFailure{ItemIdentifier: messageID})
		}
	}

	if len(failures) > 0 {
		c.publishCount(ctx, metrics.MetricBatchItemFailures, float64(len(failures)))
	}

	return awsevents.SQSEventResponse{BatchItemFailures: failures}, nil
}
