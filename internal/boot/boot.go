// Package boot wires the service's collaborators from configuration. The
// server, the Lambda API handler, the worker and the CLI all start from
// New, so each entry point is a short composition of the same helpers.
//
// Every AWS resource is optional: an unset name disables the feature and
// is reported in the startup log rather than failing the process.
package boot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/advisor"
	"github.com/agrisa/satellite-data-service/internal/archive"
	"github.com/agrisa/satellite-data-service/internal/cache"
	"github.com/agrisa/satellite-data-service/internal/config"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/farm"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/jobs"
	"github.com/agrisa/satellite-data-service/internal/logging"
	"github.com/agrisa/satellite-data-service/internal/monitoring"
)

// ErrNoKey means neither an inline key, a key file nor an SSM parameter
// was configured.
var ErrNoKey = errors.New("no Earth Engine service account key configured")

// SSMAPI is the subset of the SSM client used to read the key.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSClients holds the shared AWS config and the SSM client.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// LoadServiceAccountKey returns the Earth Engine key from the inline JSON
// or file path in cfg, falling back to the SSM parameter.
func LoadServiceAccountKey(ctx context.Context, cfg config.Config, client SSMAPI) ([]byte, error) {
	if cfg.GEEServiceAccountKey != "" {
		return earthengine.LoadKey(cfg.GEEServiceAccountKey)
	}
	if cfg.SSMKeyParam == "" || client == nil {
		return nil, ErrNoKey
	}

	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.SSMKeyParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, ErrNoKey
	}
	log.Debug().Str("param", cfg.SSMKeyParam).Dur("elapsed", time.Since(start)).Msg("Earth Engine key loaded from SSM")
	return earthengine.LoadKey(*out.Parameter.Value)
}

// InitPlatform authenticates the Earth Engine client. A failure leaves the
// service running in degraded mode, so it returns nil instead of exiting.
func InitPlatform(ctx context.Context, cfg config.Config, client SSMAPI) *earthengine.Client {
	key, err := LoadServiceAccountKey(ctx, cfg, client)
	if err != nil {
		log.Error().Err(err).Msg("Earth Engine key unavailable, imagery endpoints disabled")
		return nil
	}
	ee, err := earthengine.NewServiceAccountClient(ctx, key, cfg.GEEProjectID)
	if err != nil {
		log.Error().Err(err).Msg("Earth Engine client not initialized, imagery endpoints disabled")
		return nil
	}
	log.Info().Str("project", ee.Project()).Msg("Earth Engine client initialized")
	return ee
}

func InitGateway(cfg config.Config) *gateway.Gateway {
	return gateway.New(gateway.Options{
		Workers:       cfg.GatewayWorkers,
		MaxInFlight:   int64(cfg.GatewayMaxInFlight),
		RatePerSecond: cfg.GatewayRatePerSecond,
	})
}

// InitArchive creates the S3 archiver. S3Endpoint points the client at an
// S3-compatible store with path-style addressing.
func InitArchive(awsCfg aws.Config, cfg config.Config, fetch archive.Fetcher, exec gateway.Executor) *archive.Archiver {
	if cfg.ArchiveBucket == "" || fetch == nil {
		log.Warn().Msg("Archive bucket not set, archive disabled")
		return nil
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	a, err := archive.New(client, s3.NewPresignClient(client), fetch, exec, cfg.ArchiveBucket)
	if err != nil {
		log.Error().Err(err).Msg("Archive not initialized")
		return nil
	}
	return a
}

// InitResultCache returns the DynamoDB cache when a table is configured
// and an in-process cache otherwise.
func InitResultCache(awsCfg aws.Config, cfg config.Config) cache.Cache {
	if cfg.ResultCacheTable == "" {
		return cache.NewMemory(cfg.CacheExpiry)
	}
	c, err := cache.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.ResultCacheTable, cfg.CacheExpiry)
	if err != nil {
		log.Warn().Err(err).Msg("DynamoDB result cache not initialized, using memory")
		return cache.NewMemory(cfg.CacheExpiry)
	}
	return c
}

// InitJobStore returns the DynamoDB job store when a table is configured
// and an in-process store otherwise.
func InitJobStore(awsCfg aws.Config, cfg config.Config) jobs.Store {
	if cfg.JobTable == "" {
		return jobs.NewMemoryStore()
	}
	return jobs.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.JobTable)
}

// InitMonitoring wires the Aurora Data API store and the EventBridge
// publisher. Either may be absent.
func InitMonitoring(awsCfg aws.Config, cfg config.Config) *monitoring.Sink {
	var store *monitoring.Store
	if cfg.MonitoringEnabled() {
		store = monitoring.NewStore(rdsdata.NewFromConfig(awsCfg), cfg.MonitoringClusterARN, cfg.MonitoringSecretARN, cfg.MonitoringDatabase)
	}
	var publisher *monitoring.Publisher
	if cfg.EventBusName != "" {
		publisher = monitoring.NewPublisher(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName)
	}
	if store == nil && publisher == nil {
		return nil
	}
	return monitoring.NewSink(store, publisher)
}

// InitAdvisor returns nil when no Gemini key is configured.
func InitAdvisor(ctx context.Context, cfg config.Config) *advisor.Advisor {
	if cfg.GeminiAPIKey == "" {
		return nil
	}
	a, err := advisor.NewFromAPIKey(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini client not initialized, insights disabled")
		return nil
	}
	return a
}

// App is a fully wired service.
type App struct {
	Config  config.Config
	AWS     AWSClients
	Service *farm.Service
	Gateway *gateway.Gateway
	Jobs    jobs.Store
	// Local is set when jobs run in process.
	Local *jobs.LocalDispatcher

	startup *logging.StartupLogger
}

// New wires every collaborator named by the environment.
func New(ctx context.Context, name string) *App {
	start := time.Now()
	cfg := config.Load()
	clients := InitAWS(ctx)
	gw := InitGateway(cfg)

	deps := farm.Deps{
		Exec:              gw,
		Cache:             InitResultCache(clients.Config, cfg),
		Monitoring:        InitMonitoring(clients.Config, cfg),
		Jobs:              InitJobStore(clients.Config, cfg),
		Info:              farm.Info{Name: cfg.AppName, Version: cfg.AppVersion},
		DefaultImageScale: cfg.DefaultImageScale,
	}
	ee := InitPlatform(ctx, cfg, clients.SSM)
	if ee != nil {
		deps.Platform = ee
		deps.Archive = InitArchive(clients.Config, cfg, ee, gw)
	}
	if a := InitAdvisor(ctx, cfg); a != nil {
		deps.Advisor = a
	}

	app := &App{Config: cfg, AWS: clients, Gateway: gw, Jobs: deps.Jobs}
	app.Service = farm.New(deps)

	switch {
	case cfg.ROIStateMachineARN != "":
		app.Service.SetDispatcher(jobs.NewStateMachineDispatcher(sfn.NewFromConfig(clients.Config), cfg.ROIStateMachineARN))
	case cfg.WorkerLambdaARN != "":
		app.Service.SetDispatcher(jobs.NewLambdaDispatcher(lambdasvc.NewFromConfig(clients.Config), cfg.WorkerLambdaARN))
	default:
		app.Local = jobs.NewLocalDispatcher(deps.Jobs, app.Service.JobHandlers())
		app.Service.SetDispatcher(app.Local)
	}

	app.startup = logging.NewStartupLogger(name).
		S3Bucket("archive", cfg.ArchiveBucket).
		DynamoTable("resultCache", cfg.ResultCacheTable).
		DynamoTable("jobs", cfg.JobTable).
		SSMParam("geeKey", cfg.SSMKeyParam).
		StateMachine("regionDetection", cfg.ROIStateMachineARN).
		LambdaFunc("worker", cfg.WorkerLambdaARN).
		Database("monitoring", cfg.MonitoringClusterARN).
		EventBus("events", cfg.EventBusName).
		Feature("earthEngine", ee != nil).
		Feature("archive", deps.Archive != nil).
		Feature("monitoring", deps.Monitoring.Enabled()).
		Feature("insights", deps.Advisor != nil).
		Feature("localJobs", app.Local != nil).
		Config("gatewayWorkers", strconv.Itoa(cfg.GatewayWorkers)).
		Config("gatewayMaxInFlight", strconv.Itoa(cfg.GatewayMaxInFlight)).
		Config("defaultImageScale", strconv.Itoa(cfg.DefaultImageScale)).
		InitDuration(time.Since(start))
	return app
}

// StartupLog emits the startup event with the build identity.
func (a *App) StartupLog(commitHash, buildTime string) {
	a.startup.CommitHash(commitHash).BuildTime(buildTime).Log()
}

// Close waits for in-process jobs and stops the gateway.
func (a *App) Close() {
	if a.Local != nil {
		a.Local.Wait()
	}
	a.Gateway.Close()
}
