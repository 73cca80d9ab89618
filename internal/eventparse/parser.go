// Package eventparse validates inbound MoveAccount notifications and
// scheduler payloads into their canonical typed forms.
//
// CloudTrail events flow: CloudTrail -> EventBridge -> SQS -> Lambda.
// Each SQS record body carries one stringified CloudTrail event.
package eventparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"
)

// MaxBatchSize bounds how many SQS records one invocation will accept.
// Larger batches indicate a wiring problem and are rejected wholesale.
const MaxBatchSize = 10

var (
	ouIDPattern   = regexp.MustCompile(`^ou-[a-z0-9]{4,32}-[a-z0-9]{8,32}$`)
	rootIDPattern = regexp.MustCompile(`^r-[a-z0-9]{4,32}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json field names so error paths match the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// parentid accepts an OU id (ou-xxxx-xxxxxxxx) or a root id (r-xxxx).
	_ = v.RegisterValidation("parentid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return ouIDPattern.MatchString(s) || rootIDPattern.MatchString(s)
	})

	return v
}

// ParseError reports a malformed, empty, or oversized batch. It names
// failing field paths only, never field values, so account identifiers
// from unvalidated input cannot leak into logs.
type ParseError struct {
	Message string
	// Paths holds the json paths of the failing fields, if the failure
	// was schema validation.
	Paths []string
}

func (e *ParseError) Error() string {
	if len(e.Paths) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Paths, ", "))
}

// PayloadError reports a malformed scheduler payload on the release
// path. It is a configuration-level failure: the schedule itself was
// created wrong, and retrying will not fix it.
type PayloadError struct {
	Paths []string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid scheduler payload: %s", strings.Join(e.Paths, ", "))
}

// ParseBatch validates an inbound SQS batch and returns the parsed
// move events in arrival order. Any failure here is whole-batch: an
// empty batch, a batch over MaxBatchSize, or any malformed record
// returns a *ParseError and the caller fails the entire invocation.
func ParseBatch(records []awsevents.SQSMessage) ([]MoveEvent, error) {
	if len(records) == 0 {
		return nil, &ParseError{Message: "SQS event contains no records"}
	}
	if len(records) > MaxBatchSize {
		return nil, &ParseError{
			Message: fmt.Sprintf("SQS batch size %d exceeds maximum %d", len(records), MaxBatchSize),
		}
	}

	parsed := make([]MoveEvent, 0, len(records))
	for _, record := range records {
		event, err := parseRecord(record.Body)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, event)
	}
	return parsed, nil
}

// parseRecord decodes and validates a single SQS record body.
func parseRecord(body string) (MoveEvent, error) {
	var envelope cloudTrailEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return MoveEvent{}, &ParseError{
			Message: fmt.Sprintf("failed to parse SQS message body as JSON: %v", err),
		}
	}

	if err := validate.Struct(&envelope); err != nil {
		return MoveEvent{}, &ParseError{
			Message: "CloudTrail event validation failed",
			Paths:   fieldPaths(err),
		}
	}

	params := envelope.Detail.RequestParameters
	return MoveEvent{
		AccountID:           params.AccountID,
		SourceParentID:      params.SourceParentID,
		DestinationParentID: params.DestinationParentID,
		EventTime:           envelope.Detail.EventTime,
		EventID:             envelope.Detail.EventID,
	}, nil
}

// ValidatePayload checks a scheduler payload before the release
// controller touches any collaborator. A failure is a *PayloadError.
func ValidatePayload(payload SchedulerPayload) error {
	if err := validate.Struct(&payload); err != nil {
		return &PayloadError{Paths: fieldPaths(err)}
	}
	return nil
}

// fieldPaths extracts json field paths from a validation error,
// dropping the root struct name so paths read like the wire format
// (detail.requestParameters.accountId).
func fieldPaths(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"(unknown)"}
	}
	paths := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		paths = append(paths, ns)
	}
	return paths
}
