// Package main runs asynchronous jobs (region boundary detection) for the
// satellite data service. It is invoked by the API Lambda or by a Step
// Functions task with a jobs.Event payload.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/boot"
	"github.com/agrisa/satellite-data-service/internal/jobs"
	"github.com/agrisa/satellite-data-service/internal/logging"
	"github.com/agrisa/satellite-data-service/internal/metrics"
)

var (
	app       *boot.App
	coldStart = true
)

func main() {
	logging.Init()
	app = boot.New(context.Background(), "satellite-worker")
	app.StartupLog(commitHash, buildTime)
	lambda.Start(handler)
}

func handler(ctx context.Context, event jobs.Event) error {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "satellite-worker").Msg("Cold start")
	}
	log.Info().
		Str("type", event.Type).
		Str("jobId", event.JobID).
		Msg("Worker invoked")

	start := time.Now()
	err := app.Service.RunJob(ctx, event)

	m := metrics.New().
		Dimension("JobType", event.Type).
		Metric("JobDurationMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Property("jobId", event.JobID)
	if err != nil {
		m.Count("JobErrors")
	}
	m.Flush()
	return err
}
