package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the process identity, the resources it was
// wired to and its feature switches, then emits them as one structured
// event. A disabled optional resource shows up as a false feature rather
// than being silently absent.
type StartupLogger struct {
	name         string
	commitHash   string
	buildTime    string
	initDuration time.Duration

	resources map[string]map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the named process
// (e.g. "satellite-server", "satellite-worker").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		resources: make(map[string]map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// CommitHash sets the git commit baked in with -ldflags.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// BuildTime sets the UTC build timestamp baked in with -ldflags.
func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

func (s *StartupLogger) resource(kind, label, name string) *StartupLogger {
	if name == "" {
		return s
	}
	if s.resources[kind] == nil {
		s.resources[kind] = make(map[string]string)
	}
	s.resources[kind][label] = name
	return s
}

// S3Bucket registers a bucket. Empty names are skipped.
func (s *StartupLogger) S3Bucket(label, name string) *StartupLogger {
	return s.resource("s3Buckets", label, name)
}

func (s *StartupLogger) DynamoTable(label, name string) *StartupLogger {
	return s.resource("dynamoTables", label, name)
}

// SSMParam registers a parameter path. Only the path is logged, never the value.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.resource("ssmParams", label, path)
}

func (s *StartupLogger) StateMachine(label, arn string) *StartupLogger {
	return s.resource("stateMachines", label, arn)
}

func (s *StartupLogger) LambdaFunc(label, arn string) *StartupLogger {
	return s.resource("lambdaFunctions", label, arn)
}

func (s *StartupLogger) Database(label, name string) *StartupLogger {
	return s.resource("databases", label, name)
}

func (s *StartupLogger) EventBus(label, name string) *StartupLogger {
	return s.resource("eventBuses", label, name)
}

// Feature registers a boolean switch (e.g. "archive", "insights").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration value.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long initialization took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits one INFO event with everything collected.
func (s *StartupLogger) Log() {
	evt := log.Info()

	identity := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		identity = identity.
			Str("functionName", fn).
			Str("functionVersion", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		identity = identity.Str("region", region)
	}
	if s.commitHash != "" {
		identity = identity.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		identity = identity.Str("buildTime", s.buildTime)
	}
	evt = evt.Dict("process", identity)

	if len(s.resources) > 0 {
		resources := zerolog.Dict()
		for kind, m := range s.resources {
			resources = resources.Dict(kind, dictFromMap(m))
		}
		evt = evt.Dict("resources", resources)
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
