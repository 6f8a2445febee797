// Package config loads service configuration from environment variables.
// Each binary loads only the section it uses: the enqueue side needs the
// queue service settings, the worker only its listener and token checks.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/camuthig/go-tasks-gcp/authn"
	"github.com/camuthig/go-tasks-gcp/backend"
)

const (
	projectIDEnv       = "TASKS_GCP_PROJECT_ID"
	locationEnv        = "TASKS_GCP_LOCATION"
	credentialsEnv     = "TASKS_GCP_CREDENTIALS_FILE"
	defaultTargetEnv   = "TASKS_DEFAULT_TARGET"
	serviceAccountEnv  = "TASKS_SERVICE_ACCOUNT"
	enqueueOnCommitEnv = "TASKS_ENQUEUE_ON_COMMIT"
	queuesEnv          = "TASKS_QUEUES"

	authnModeEnv     = "TASKS_AUTHN"
	authnAudienceEnv = "TASKS_AUTHN_AUDIENCE"
	authnIssuerEnv   = "TASKS_AUTHN_ISSUER"

	workerAddrEnv = "WORKER_ADDR"
	workerPathEnv = "WORKER_PATH"

	defaultQueue      = "default"
	defaultWorkerAddr = ":8080"
	defaultWorkerPath = "/tasks"
)

// Server holds the HTTP listener settings for the worker binary.
type Server struct {
	Addr string
	Path string
}

// Worker is the configuration consumed by the callback server.
type Worker struct {
	Authn  authn.Config
	Server Server
}

// LoadBackend reads the enqueue-side settings.
func LoadBackend() (*backend.Config, error) {
	projectID := os.Getenv(projectIDEnv)
	if projectID == "" {
		return nil, fmt.Errorf("%w: %s", ErrProjectIDMissing, projectIDEnv)
	}

	location := os.Getenv(locationEnv)
	if location == "" {
		return nil, fmt.Errorf("%w: %s", ErrLocationMissing, locationEnv)
	}

	onCommit := false

	if raw := os.Getenv(enqueueOnCommitEnv); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidBool, enqueueOnCommitEnv, raw)
		}

		onCommit = parsed
	}

	var queues []backend.QueueConfig
	for _, name := range strings.Split(getEnv(queuesEnv, defaultQueue), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		queues = append(queues, backend.QueueConfig{Name: name})
	}

	cfg := &backend.Config{
		ProjectID:           projectID,
		Location:            location,
		CredentialsFile:     os.Getenv(credentialsEnv),
		DefaultTarget:       os.Getenv(defaultTargetEnv),
		ServiceAccountEmail: os.Getenv(serviceAccountEnv),
		EnqueueOnCommit:     onCommit,
		Queues:              queues,
	}

	return cfg, cfg.Validate()
}

// LoadWorker reads the callback-side settings. The queue service settings
// are not required here; a worker deployment only validates tokens and
// serves HTTP.
func LoadWorker() (*Worker, error) {
	mode := authn.Mode(getEnv(authnModeEnv, string(authn.ModeOIDC)))

	switch mode {
	case authn.ModeOIDC, authn.ModeNone:
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidAuthnMode, authnModeEnv, mode)
	}

	// Tokens are minted for the callback URL, so the producer's default
	// target doubles as the expected audience when no explicit one is set.
	audience := getEnv(authnAudienceEnv, os.Getenv(defaultTargetEnv))

	return &Worker{
		Authn: authn.Config{
			Mode:                mode,
			Audience:            audience,
			Issuer:              os.Getenv(authnIssuerEnv),
			ServiceAccountEmail: os.Getenv(serviceAccountEnv),
		},
		Server: Server{
			Addr: getEnv(workerAddrEnv, defaultWorkerAddr),
			Path: getEnv(workerPathEnv, defaultWorkerPath),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}
