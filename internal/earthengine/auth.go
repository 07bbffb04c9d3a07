package earthengine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested for the service account.
var Scopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

// LoadKey returns service account JSON from either inline JSON or a file path.
func LoadKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("service account key is empty")
	}
	if strings.HasPrefix(value, "{") {
		return []byte(value), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	return data, nil
}

// NewServiceAccountClient builds a Client authenticated with a service
// account key. When project is empty the key's project_id is used.
func NewServiceAccountClient(ctx context.Context, keyJSON []byte, project string) (*Client, error) {
	conf, err := google.JWTConfigFromJSON(keyJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	if project == "" {
		var key struct {
			ProjectID string `json:"project_id"`
		}
		if err := json.Unmarshal(keyJSON, &key); err == nil {
			project = key.ProjectID
		}
	}
	if project == "" {
		return nil, fmt.Errorf("no Earth Engine project configured and key has no project_id")
	}

	httpClient := oauth2.NewClient(ctx, conf.TokenSource(ctx))
	httpClient.Timeout = defaultTimeout
	return NewClient(httpClient, project), nil
}
