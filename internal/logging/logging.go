// Package logging provides the shared JSON logger and the closed set
// of action tags used to key every structured log record. Monitoring
// filters match on the action field, so the set is enumerated rather
// than free-form strings.
package logging

import (
	"log/slog"
	"os"
)

// Action tags one log record with the state-machine step it reports.
type Action string

const (
	ActionQuarantineStart      Action = "QUARANTINE_START"
	ActionQuarantineSkip       Action = "QUARANTINE_SKIP"
	ActionQuarantineComplete   Action = "QUARANTINE_COMPLETE"
	ActionUnquarantineStart    Action = "UNQUARANTINE_START"
	ActionUnquarantineSkip     Action = "UNQUARANTINE_SKIP"
	ActionUnquarantineComplete Action = "UNQUARANTINE_COMPLETE"
	ActionHandlerError         Action = "HANDLER_ERROR"
	ActionParseError           Action = "PARSE_ERROR"
	ActionSchedulerCreated     Action = "SCHEDULER_CREATED"
	ActionSchedulerCreateFail  Action = "SCHEDULER_CREATE_FAILED"
	ActionSchedulerDeleted     Action = "SCHEDULER_DELETED"
	ActionSchedulerDeleteFail  Action = "SCHEDULER_DELETE_FAILED"
	ActionQuarantineBypassTag  Action = "QUARANTINE_BYPASS_TAG"
	ActionTagCheckFailed       Action = "TAG_CHECK_FAILED"
	ActionTagRemovalFailed     Action = "TAG_REMOVAL_FAILED"
)

// Attr returns the action as a slog attribute under the fixed "action" key.
func (a Action) Attr() slog.Attr {
	return slog.String("action", string(a))
}

// New creates the JSON logger used by every Lambda in this repository.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
