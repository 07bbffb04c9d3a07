package boot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/agrisa/satellite-data-service/internal/cache"
	"github.com/agrisa/satellite-data-service/internal/config"
	"github.com/agrisa/satellite-data-service/internal/jobs"
)

type fakeSSM struct {
	value string
	err   error
	in    *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestLoadServiceAccountKey(t *testing.T) {
	const inline = `{"type":"service_account","project_id":"agrisa"}`
	keyFile := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(keyFile, []byte(inline), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("inline", func(t *testing.T) {
		f := &fakeSSM{}
		key, err := LoadServiceAccountKey(context.Background(), config.Config{GEEServiceAccountKey: inline, SSMKeyParam: "/p"}, f)
		if err != nil || string(key) != inline {
			t.Errorf("key = %q, %v", key, err)
		}
		if f.in != nil {
			t.Error("SSM should not be read when a key is configured")
		}
	})

	t.Run("file", func(t *testing.T) {
		key, err := LoadServiceAccountKey(context.Background(), config.Config{GEEServiceAccountKey: keyFile}, nil)
		if err != nil || string(key) != inline {
			t.Errorf("key = %q, %v", key, err)
		}
	})

	t.Run("ssm", func(t *testing.T) {
		f := &fakeSSM{value: inline}
		key, err := LoadServiceAccountKey(context.Background(), config.Config{SSMKeyParam: "/agrisa/gee-key"}, f)
		if err != nil || string(key) != inline {
			t.Errorf("key = %q, %v", key, err)
		}
		if aws.ToString(f.in.Name) != "/agrisa/gee-key" || !aws.ToBool(f.in.WithDecryption) {
			t.Errorf("request = %+v", f.in)
		}
	})

	t.Run("ssm error", func(t *testing.T) {
		f := &fakeSSM{err: errors.New("access denied")}
		if _, err := LoadServiceAccountKey(context.Background(), config.Config{SSMKeyParam: "/p"}, f); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("none", func(t *testing.T) {
		if _, err := LoadServiceAccountKey(context.Background(), config.Config{}, &fakeSSM{}); !errors.Is(err, ErrNoKey) {
			t.Errorf("err = %v, want ErrNoKey", err)
		}
	})
}

func TestUnconfiguredResourcesFallBack(t *testing.T) {
	cfg := config.Config{CacheExpiry: time.Hour}

	if _, ok := InitResultCache(aws.Config{}, cfg).(*cache.Memory); !ok {
		t.Error("result cache should be in memory without a table")
	}
	if _, ok := InitJobStore(aws.Config{}, cfg).(*jobs.MemoryStore); !ok {
		t.Error("job store should be in memory without a table")
	}
	if sink := InitMonitoring(aws.Config{}, cfg); sink != nil {
		t.Errorf("monitoring sink = %+v, want nil", sink)
	}
	if a := InitArchive(aws.Config{}, cfg, nil, nil); a != nil {
		t.Error("archive should be disabled without a bucket")
	}
	if a := InitAdvisor(context.Background(), cfg); a != nil {
		t.Error("advisor should be disabled without a key")
	}
}

func TestConfiguredResources(t *testing.T) {
	cfg := config.Config{
		CacheExpiry:          time.Hour,
		ResultCacheTable:     "results",
		JobTable:             "jobs",
		MonitoringClusterARN: "arn:aws:rds:ap-southeast-1:1:cluster:agrisa",
		MonitoringSecretARN:  "arn:aws:secretsmanager:ap-southeast-1:1:secret:agrisa",
		EventBusName:         "agrisa",
	}
	awsCfg := aws.Config{Region: "ap-southeast-1"}

	if _, ok := InitResultCache(awsCfg, cfg).(*cache.Dynamo); !ok {
		t.Error("result cache should use DynamoDB")
	}
	if _, ok := InitJobStore(awsCfg, cfg).(*jobs.DynamoStore); !ok {
		t.Error("job store should use DynamoDB")
	}
	if sink := InitMonitoring(awsCfg, cfg); !sink.Enabled() {
		t.Error("monitoring sink should be enabled")
	}
}
