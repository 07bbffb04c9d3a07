package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rs/zerolog/log"
)

// Event is the payload a worker receives.
type Event struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// Dispatcher starts a stored job without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *Job) error
}

// LambdaAPI is the subset of the Lambda client used to invoke the worker.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambdasvc.InvokeInput, opts ...func(*lambdasvc.Options)) (*lambdasvc.InvokeOutput, error)
}

// LambdaDispatcher invokes the worker function with InvocationType Event,
// so the call returns as soon as Lambda has queued the event.
type LambdaDispatcher struct {
	client    LambdaAPI
	workerARN string
}

func NewLambdaDispatcher(client LambdaAPI, workerARN string) *LambdaDispatcher {
	return &LambdaDispatcher{client: client, workerARN: workerARN}
}

func (d *LambdaDispatcher) Dispatch(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(Event{Type: job.Type, JobID: job.ID})
	if err != nil {
		return fmt.Errorf("marshal worker event: %w", err)
	}
	_, err = d.client.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName:   aws.String(d.workerARN),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		log.Error().Err(err).Str("jobId", job.ID).Msg("Failed to invoke worker Lambda")
		return fmt.Errorf("invoke worker lambda: %w", err)
	}
	log.Debug().Str("type", job.Type).Str("jobId", job.ID).Msg("Worker Lambda invoked asynchronously")
	return nil
}

// SFNAPI is the subset of the Step Functions client used to start runs.
type SFNAPI interface {
	StartExecution(ctx context.Context, in *sfn.StartExecutionInput, opts ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// StateMachineDispatcher starts one execution per job, named after the
// job id so a duplicate dispatch is rejected by Step Functions.
type StateMachineDispatcher struct {
	client          SFNAPI
	stateMachineARN string
}

func NewStateMachineDispatcher(client SFNAPI, stateMachineARN string) *StateMachineDispatcher {
	return &StateMachineDispatcher{client: client, stateMachineARN: stateMachineARN}
}

func (d *StateMachineDispatcher) Dispatch(ctx context.Context, job *Job) error {
	input, err := json.Marshal(Event{Type: job.Type, JobID: job.ID})
	if err != nil {
		return fmt.Errorf("marshal execution input: %w", err)
	}
	out, err := d.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(d.stateMachineARN),
		Name:            aws.String(job.ID),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		log.Error().Err(err).Str("jobId", job.ID).Msg("Failed to start Step Functions execution")
		return fmt.Errorf("start execution: %w", err)
	}
	log.Info().
		Str("jobId", job.ID).
		Str("executionArn", aws.ToString(out.ExecutionArn)).
		Msg("Step Functions execution started")
	return nil
}

// LocalDispatcher runs jobs in background goroutines of the current
// process. It serves the standalone server where no worker is deployed.
type LocalDispatcher struct {
	store    Store
	handlers map[string]Handler
	wg       sync.WaitGroup
}

func NewLocalDispatcher(store Store, handlers map[string]Handler) *LocalDispatcher {
	return &LocalDispatcher{store: store, handlers: handlers}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, job *Job) error {
	handler, ok := d.handlers[job.Type]
	if !ok {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	// The job must outlive the request that created it.
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := Run(runCtx, d.store, job.ID, handler); err != nil {
			log.Error().Err(err).Str("jobId", job.ID).Msg("Local job run failed")
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has finished.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
