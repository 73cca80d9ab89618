package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/isb-tools/billing-separator/internal/accountstore"
	"github.com/isb-tools/billing-separator/internal/eventparse"
	"github.com/isb-tools/billing-separator/internal/orgs"
	"github.com/isb-tools/billing-separator/internal/schedule"
)

const testAccountID = "417845783913"

var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

// Mock implementations

type mockAccounts struct {
	account *accountstore.Account
	err     error
	calls   int
}

func (m *mockAccounts) Get(ctx context.Context, accountID string) (*accountstore.Account, error) {
	m.calls++
	return m.account, m.err
}

type moveCall struct {
	From accountstore.Status
	To   accountstore.Status
}

type mockTransaction struct {
	beginErr error
	begun    int
}

func (t *mockTransaction) Begin(ctx context.Context) error {
	t.begun++
	return t.beginErr
}

func (t *mockTransaction) Rollback(ctx context.Context) error { return nil }

type mockMover struct {
	tx    *mockTransaction
	calls []moveCall
}

func (m *mockMover) BeginTransactionalMove(account *accountstore.Account, from, to accountstore.Status) orgs.Transaction {
	m.calls = append(m.calls, moveCall{From: from, To: to})
	return m.tx
}

type mockSchedules struct {
	deleteErr error
	calls     []string
}

func (m *mockSchedules) Delete(ctx context.Context, name string) error {
	m.calls = append(m.calls, name)
	return m.deleteErr
}

type fixture struct {
	accounts  *mockAccounts
	mover     *mockMover
	schedules *mockSchedules
}

func newFixture() *fixture {
	return &fixture{
		accounts: &mockAccounts{
			account: &accountstore.Account{
				AwsAccountID: testAccountID,
				Status:       accountstore.StatusQuarantine,
			},
		},
		mover:     &mockMover{tx: &mockTransaction{}},
		schedules: &mockSchedules{},
	}
}

func (f *fixture) controller() *Controller {
	return &Controller{
		Accounts:  f.accounts,
		Mover:     f.mover,
		Schedules: f.schedules,
		Logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Now:       func() time.Time { return testNow },
	}
}

func validPayload() eventparse.SchedulerPayload {
	return eventparse.SchedulerPayload{
		AccountID:     testAccountID,
		QuarantinedAt: "2026-03-01T10:00:00Z",
		SchedulerName: "isb-billing-sep-unquarantine-417845783913-1234",
	}
}

func TestProcess_ReleasesQuarantinedAccount(t *testing.T) {
	f := newFixture()

	result, err := f.controller().Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != ActionReleased || !result.Success {
		t.Fatalf("expected RELEASED success, got %+v", result)
	}
	if !result.SchedulerDeleted {
		t.Error("expected schedulerDeleted to be set")
	}

	if len(f.mover.calls) != 1 {
		t.Fatalf("expected 1 move, got %d", len(f.mover.calls))
	}
	call := f.mover.calls[0]
	if call.From != accountstore.StatusQuarantine || call.To != accountstore.StatusAvailable {
		t.Errorf("expected Quarantine->Available move, got %s->%s", call.From, call.To)
	}
	if len(f.schedules.calls) != 1 || f.schedules.calls[0] != validPayload().SchedulerName {
		t.Errorf("expected schedule deletion, got %v", f.schedules.calls)
	}
}

func TestProcess_InvalidPayloadRejectedBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name    string
		payload eventparse.SchedulerPayload
	}{
		{
			name: "invalid account id",
			payload: eventparse.SchedulerPayload{
				AccountID:     "invalid",
				QuarantinedAt: "2026-03-01T10:00:00Z",
				SchedulerName: "sched-1",
			},
		},
		{
			name: "non-ISO timestamp",
			payload: eventparse.SchedulerPayload{
				AccountID:     testAccountID,
				QuarantinedAt: "01/03/2026",
				SchedulerName: "sched-1",
			},
		},
		{
			name: "empty scheduler name",
			payload: eventparse.SchedulerPayload{
				AccountID:     testAccountID,
				QuarantinedAt: "2026-03-01T10:00:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			_, err := f.controller().Process(context.Background(), tt.payload)

			var perr *eventparse.PayloadError
			if !errors.As(err, &perr) {
				t.Fatalf("expected PayloadError, got %v", err)
			}
			if f.accounts.calls != 0 || len(f.mover.calls) != 0 || len(f.schedules.calls) != 0 {
				t.Error("no collaborator may be called for a malformed payload")
			}
		})
	}
}

func TestProcess_UntrackedAccountSkipsButCleansUp(t *testing.T) {
	f := newFixture()
	f.accounts.account = nil

	result, err := f.controller().Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != ActionSkipped {
		t.Fatalf("expected SKIPPED, got %s", result.Action)
	}
	if len(f.schedules.calls) != 1 {
		t.Error("schedule must still be deleted for an untracked account")
	}
	if len(f.mover.calls) != 0 {
		t.Error("untracked account must not be moved")
	}
}

func TestProcess_AlreadyAvailableSkipsButCleansUp(t *testing.T) {
	f := newFixture()
	f.accounts.account.Status = accountstore.StatusAvailable

	result, err := f.controller().Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != ActionSkipped {
		t.Fatalf("expected SKIPPED, got %s", result.Action)
	}
	if len(f.mover.calls) != 0 {
		t.Error("already-available account must not be moved")
	}
	if len(f.schedules.calls) != 1 {
		t.Error("schedule must still be deleted")
	}
}

func TestProcess_UnexpectedStateSkipsButCleansUp(t *testing.T) {
	f := newFixture()
	f.accounts.account.Status = accountstore.StatusFrozen

	result, err := f.controller().Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != ActionSkipped {
		t.Fatalf("expected SKIPPED, got %s", result.Action)
	}
	if len(f.mover.calls) != 0 {
		t.Error("account in unexpected state must not be moved")
	}
	if len(f.schedules.calls) != 1 {
		t.Error("schedule must still be deleted")
	}
}

func TestProcess_DeleteNotFoundIsSuccess(t *testing.T) {
	f := newFixture()
	f.schedules.deleteErr = fmt.Errorf("schedule gone: %w", schedule.ErrNotFound)

	result, err := f.controller().Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("NotFound on delete must not fail the release: %v", err)
	}
	if result.Action != ActionReleased {
		t.Fatalf("expected RELEASED, got %s", result.Action)
	}
}

func TestProcess_DeleteFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.schedules.deleteErr = errors.New("throttled")

	_, err := f.controller().Process(context.Background(), validPayload())
	if err == nil {
		t.Fatal("expected a real delete failure to fail the invocation")
	}
	// The move already happened; redelivery will hit the
	// already-available guard and only retry cleanup.
	if f.mover.tx.begun != 1 {
		t.Error("expected the move to have committed before the delete failure")
	}
}

func TestProcess_MoveFailureLeavesSchedule(t *testing.T) {
	f := newFixture()
	f.mover.tx.beginErr = errors.New("MoveAccount failed")

	_, err := f.controller().Process(context.Background(), validPayload())
	if err == nil {
		t.Fatal("expected error when the move fails")
	}
	if len(f.schedules.calls) != 0 {
		t.Error("schedule must not be deleted when the move failed")
	}
}

func TestProcess_RepeatFireAfterCleanupIsIdempotent(t *testing.T) {
	f := newFixture()
	f.accounts.account.Status = accountstore.StatusAvailable
	f.schedules.deleteErr = fmt.Errorf("schedule gone: %w", schedule.ErrNotFound)

	result, err := f.controller().Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("repeat fire must not error: %v", err)
	}
	if result.Action != ActionSkipped || !result.Success {
		t.Fatalf("expected SKIPPED success, got %+v", result)
	}
}

func TestProcess_AccountStoreErrorPropagates(t *testing.T) {
	f := newFixture()
	f.accounts.err = errors.New("dynamodb unavailable")

	result, err := f.controller().Process(context.Background(), validPayload())
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Action != ActionError {
		t.Errorf("expected ERROR action, got %s", result.Action)
	}
	if len(f.schedules.calls) != 0 {
		t.Error("store failure must not delete the schedule (redelivery will retry)")
	}
}
