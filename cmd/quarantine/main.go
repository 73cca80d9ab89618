// The quarantine Lambda intercepts CloudTrail MoveAccount events where
// reclaimed accounts land back in the Available OU. Accounts arriving
// from the CleanUp OU are redirected into Quarantine for the hold
// period and a delayed release is scheduled.
//
// Event flow: CloudTrail -> EventBridge -> SQS -> this Lambda.
package main

import (
	"context"
	"log/slog"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"

	"github.com/isb-tools/billing-separator/internal/accountstore"
	"github.com/isb-tools/billing-separator/internal/config"
	"github.com/isb-tools/billing-separator/internal/logging"
	"github.com/isb-tools/billing-separator/internal/metrics"
	"github.com/isb-tools/billing-separator/internal/orgs"
	"github.com/isb-tools/billing-separator/internal/quarantine"
	"github.com/isb-tools/billing-separator/internal/schedule"
	"github.com/isb-tools/billing-separator/internal/tracing"
)

var logger = logging.New()

// Dependencies for handler (injectable for testing)
type Dependencies struct {
	Controller *quarantine.Controller
}

var deps *Dependencies

// handler processes one SQS batch of MoveAccount events with partial
// batch response: only failed items are redelivered.
func handler(ctx context.Context, sqsEvent awsevents.SQSEvent) (awsevents.SQSEventResponse, error) {
	ctx, span := tracing.StartHandlerSpan(ctx, "QuarantineBatch", tracing.Function("quarantine"))
	defer span.End()

	return deps.Controller.HandleBatch(ctx, sqsEvent)
}

func main() {
	ctx := context.Background()

	tp, err := tracing.Init(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to initialize tracer provider",
			slog.String("error", err.Error()),
		)
		panic(err)
	}
	otel.SetTracerProvider(tp)

	// Cold start span - all init AWS calls become children
	ctx, coldStartSpan := tracing.StartColdStartSpan(ctx, "quarantine")
	defer coldStartSpan.End()

	cfg, err := config.LoadQuarantine()
	if err != nil {
		logger.Error("FATAL: Invalid configuration",
			slog.String("error", err.Error()),
		)
		panic(err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config",
			slog.String("error", err.Error()),
		)
		panic(err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	// Organizations lives in the org management account; everything
	// else is hub-local.
	orgsClient := organizations.NewFromConfig(
		orgs.OrgManagementConfig(awsCfg, cfg.IntermediateRoleArn, cfg.OrgMgmtRoleArn),
	)

	accounts := accountstore.New(dynamodb.NewFromConfig(awsCfg), cfg.AccountTableName)
	ouService := orgs.NewOuService(orgsClient, cfg.SandboxOuID)

	var publisher metrics.Publisher = metrics.Noop{}
	if cfg.MetricNamespace != "" {
		publisher = metrics.NewCloudWatchPublisher(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace)
	}

	deps = &Dependencies{
		Controller: &quarantine.Controller{
			Accounts:  accounts,
			Ous:       ouService,
			Mover:     orgs.NewMover(orgsClient, ouService, accounts),
			Tags:      orgs.NewTagStore(orgsClient),
			Schedules: schedule.New(scheduler.NewFromConfig(awsCfg), cfg.UnquarantineLambdaArn, cfg.SchedulerRoleArn),
			Metrics:   publisher,
			Logger:    logger,
		},
	}

	lambda.Start(otellambda.InstrumentHandler(handler, xrayconfig.WithRecommendedOptions(tp)...))
}
