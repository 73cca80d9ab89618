package eventparse

// MoveEvent is the validated form of a CloudTrail MoveAccount
// notification. Constructed once per record by ParseBatch and treated
// as immutable afterwards.
type MoveEvent struct {
	// AccountID is the 12-digit account being moved.
	AccountID string
	// SourceParentID is the OU or root the account moved from.
	SourceParentID string
	// DestinationParentID is the OU or root the account moved to.
	DestinationParentID string
	// EventTime is the original CloudTrail event timestamp.
	EventTime string
	// EventID is the CloudTrail event id, kept for log correlation.
	EventID string
}

// SchedulerPayload is the input the release Lambda receives from
// EventBridge Scheduler. It is created by the quarantine controller
// and deleted (with its schedule) once the account is released.
type SchedulerPayload struct {
	AccountID     string `json:"accountId" validate:"required,len=12,number"`
	QuarantinedAt string `json:"quarantinedAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	SchedulerName string `json:"schedulerName" validate:"required"`
}

// cloudTrailEnvelope is the EventBridge envelope around a CloudTrail
// event as forwarded from the org management account.
type cloudTrailEnvelope struct {
	Version    string           `json:"version" validate:"required"`
	ID         string           `json:"id" validate:"required"`
	DetailType string           `json:"detail-type" validate:"required,eq=AWS API Call via CloudTrail"`
	Source     string           `json:"source" validate:"required,eq=aws.organizations"`
	Account    string           `json:"account" validate:"required"`
	Time       string           `json:"time" validate:"required"`
	Region     string           `json:"region" validate:"required"`
	Detail     cloudTrailDetail `json:"detail" validate:"required"`
}

type cloudTrailDetail struct {
	EventSource       string            `json:"eventSource" validate:"required,eq=organizations.amazonaws.com"`
	EventName         string            `json:"eventName" validate:"required,eq=MoveAccount"`
	EventTime         string            `json:"eventTime" validate:"required"`
	EventID           string            `json:"eventID" validate:"required"`
	RequestParameters moveAccountParams `json:"requestParameters" validate:"required"`
}

type moveAccountParams struct {
	AccountID           string `json:"accountId" validate:"required,len=12,number"`
	SourceParentID      string `json:"sourceParentId" validate:"required,parentid"`
	DestinationParentID string `json:"destinationParentId" validate:"required,parentid"`
}
