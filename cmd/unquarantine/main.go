// The unquarantine Lambda releases accounts from Quarantine back to
// the Available OU once the hold period has elapsed. It is invoked
// directly by EventBridge Scheduler with the payload the quarantine
// Lambda attached to the schedule.
package main

import (
	"context"
	"log/slog"

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
	"github.com/isb-tools/billing-separator/internal/eventparse"
	"github.com/isb-tools/billing-separator/internal/logging"
	"github.com/isb-tools/billing-separator/internal/metrics"
	"github.com/isb-tools/billing-separator/internal/orgs"
	"github.com/isb-tools/billing-separator/internal/release"
	"github.com/isb-tools/billing-separator/internal/schedule"
	"github.com/isb-tools/billing-separator/internal/tracing"
)

var logger = logging.New()

// Dependencies for handler (injectable for testing)
type Dependencies struct {
	Controller *release.Controller
}

var deps *Dependencies

// handler processes one schedule fire. The payload is validated before
// any store or scheduler call; a malformed payload is a configuration
// error, not a retriable business failure.
func handler(ctx context.Context, payload eventparse.SchedulerPayload) (release.Result, error) {
	ctx, span := tracing.StartHandlerSpan(ctx, "Unquarantine",
		tracing.Function("unquarantine"),
		tracing.AccountID(payload.AccountID),
		tracing.SchedulerName(payload.SchedulerName),
	)
	defer span.End()

	return deps.Controller.Process(ctx, payload)
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
	ctx, coldStartSpan := tracing.StartColdStartSpan(ctx, "unquarantine")
	defer coldStartSpan.End()

	cfg, err := config.LoadUnquarantine()
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
		Controller: &release.Controller{
			Accounts: accounts,
			Mover:    orgs.NewMover(orgsClient, ouService, accounts),
			// Target and role are only needed for creation; the release
			// path just deletes by name.
			Schedules: schedule.New(scheduler.NewFromConfig(awsCfg), "", ""),
			Metrics:   publisher,
			Logger:    logger,
		},
	}

	lambda.Start(otellambda.InstrumentHandler(handler, xrayconfig.WithRecommendedOptions(tp)...))
}
