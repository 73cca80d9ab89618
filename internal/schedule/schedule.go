// Package schedule manages the one-shot EventBridge Scheduler entries
// that release accounts from quarantine. One schedule exists per
// quarantine cycle; it is created by the quarantine controller and
// deleted by the release controller after it fires.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"

	"github.com/isb-tools/billing-separator/internal/eventparse"
)

const (
	// Group is the scheduler group holding every release schedule.
	Group = "isb-billing-separator"
	// NamePrefix starts every release schedule name. The full pattern
	// is <prefix>-<accountId>-<unixMillis>.
	NamePrefix = "isb-billing-sep-unquarantine"
)

// ErrNotFound indicates the schedule no longer exists. Callers on the
// release path treat this as success: a prior attempt already cleaned
// it up.
var ErrNotFound = errors.New("schedule not found")

// SchedulerAPI defines the EventBridge Scheduler operations the store
// needs.
type SchedulerAPI interface {
	CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

// Store creates and deletes release schedules.
type Store struct {
	client    SchedulerAPI
	targetArn string
	roleArn   string
}

// New creates a Store. targetArn is the unquarantine Lambda the
// schedule invokes; roleArn is the role Scheduler assumes to do so.
func New(client SchedulerAPI, targetArn, roleArn string) *Store {
	return &Store{client: client, targetArn: targetArn, roleArn: roleArn}
}

// ReleaseName derives the schedule name for a quarantine action. The
// creation timestamp keeps names unique across repeated quarantines of
// the same account.
func ReleaseName(accountID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", NamePrefix, accountID, at.UnixMilli())
}

// CreateRelease creates a one-shot schedule firing at fireAt with the
// given payload as the Lambda input.
func (s *Store) CreateRelease(ctx context.Context, name string, fireAt time.Time, payload eventparse.SchedulerPayload) error {
	input, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal scheduler payload: %w", err)
	}

	// EventBridge Scheduler at() expressions take UTC without a zone
	// suffix or fractional seconds.
	expr := fmt.Sprintf("at(%s)", fireAt.UTC().Format("2006-01-02T15:04:05"))

	_, err = s.client.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:               aws.String(name),
		GroupName:          aws.String(Group),
		ScheduleExpression: aws.String(expr),
		FlexibleTimeWindow: &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff},
		Target: &types.Target{
			Arn:     aws.String(s.targetArn),
			RoleArn: aws.String(s.roleArn),
			Input:   aws.String(string(input)),
		},
		Description: aws.String(fmt.Sprintf("Release account %s from quarantine", payload.AccountID)),
	})
	if err != nil {
		return fmt.Errorf("failed to create schedule %s: %w", name, err)
	}
	return nil
}

// Delete removes a schedule by name. A missing schedule maps to
// ErrNotFound so callers can treat repeat deletion as success.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(Group),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return fmt.Errorf("schedule %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete schedule %s: %w", name, err)
	}
	return nil
}
