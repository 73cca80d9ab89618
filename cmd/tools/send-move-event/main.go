// send-move-event enqueues a synthetic CloudTrail MoveAccount event on
// the quarantine intake queue. Useful for exercising the quarantine
// path in test environments and for backfilling moves that were missed
// while the event rule was down.
//
// Usage:
//
//	send-move-event -queue-url URL -account-id ID -source-parent OU [-destination-parent OU]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/isb-tools/billing-separator/internal/logging"
)

var logger = logging.New()

func buildEvent(accountID, sourceParentID, destinationParentID string, now time.Time) ([]byte, error) {
	timestamp := now.UTC().Format(time.RFC3339)
	return json.Marshal(map[string]any{
		"version":     "0",
		"id":          uuid.NewString(),
		"detail-type": "AWS API Call via CloudTrail",
		"source":      "aws.organizations",
		"account":     "000000000000",
		"time":        timestamp,
		"region":      "us-east-1",
		"detail": map[string]any{
			"eventSource": "organizations.amazonaws.com",
			"eventName":   "MoveAccount",
			"eventTime":   timestamp,
			"eventID":     uuid.NewString(),
			"requestParameters": map[string]any{
				"accountId":           accountID,
				"sourceParentId":      sourceParentID,
				"destinationParentId": destinationParentID,
			},
		},
	})
}

func main() {
	queueURL := flag.String("queue-url", "", "URL of the quarantine intake queue (required)")
	accountID := flag.String("account-id", "", "12-digit account id to move (required)")
	sourceParent := flag.String("source-parent", "", "OU or root id the account moved from (required)")
	destinationParent := flag.String("destination-parent", "", "OU or root id the account moved to (required)")
	flag.Parse()

	if *queueURL == "" || *accountID == "" || *sourceParent == "" || *destinationParent == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	body, err := buildEvent(*accountID, *sourceParent, *destinationParent, time.Now())
	if err != nil {
		logger.Error("Failed to build event", slog.String("error", err.Error()))
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("Failed to load AWS config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client := sqs.NewFromConfig(awsCfg)
	output, err := client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    queueURL,
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		logger.Error("Failed to send message", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("sent MoveAccount event for account %s (message id %s)\n",
		*accountID, aws.ToString(output.MessageId))
}
