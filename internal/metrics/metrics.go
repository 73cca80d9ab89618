// Package metrics publishes outcome counts to CloudWatch. Publishing
// is best effort: a metric failure is logged by the caller and never
// blocks or fails the state machine.
package metrics

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names emitted by the controllers.
const (
	MetricAccountsQuarantined = "AccountsQuarantined"
	MetricAccountsReleased    = "AccountsReleased"
	MetricQuarantineBypassed  = "QuarantineBypassed"
	MetricBatchItemFailures   = "BatchItemFailures"
)

// Publisher publishes count metrics.
type Publisher interface {
	PublishCount(ctx context.Context, name string, value float64) error
}

// CloudWatchPublisher implements Publisher using CloudWatch.
type CloudWatchPublisher struct {
	client    *cloudwatch.Client
	namespace string
}

// NewCloudWatchPublisher creates a CloudWatchPublisher.
func NewCloudWatchPublisher(client *cloudwatch.Client, namespace string) *CloudWatchPublisher {
	return &CloudWatchPublisher{client: client, namespace: namespace}
}

// PublishCount publishes a count metric.
func (p *CloudWatchPublisher) PublishCount(ctx context.Context, name string, value float64) error {
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       types.StandardUnitCount,
			},
		},
	})
	return err
}

// Noop discards all metrics. Used when no metric namespace is
// configured.
type Noop struct{}

// PublishCount does nothing.
func (Noop) PublishCount(context.Context, string, float64) error { return nil }
