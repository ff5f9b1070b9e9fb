package main

import (
	"os"
	"strconv"
	"time"

	"github.com/controlplane-com/pool-orchestrator/pkg/api/actions"
	"github.com/controlplane-com/pool-orchestrator/pkg/api/client"
	"github.com/controlplane-com/pool-orchestrator/pkg/operation"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/poll"
	"github.com/controlplane-com/pool-orchestrator/pkg/upload"
)

// Settings holds everything needed to reach the platform
type Settings struct {
	Client    client.Config
	Poll      poll.Spec
	ChunkSize int
}

// settingsFromEnv reads the client, poll and upload settings from the environment
func settingsFromEnv() Settings {
	spec := poll.DefaultSpec()
	spec.Interval = getEnvDuration("EMS_POLL_INTERVAL", spec.Interval)
	spec.Timeout = getEnvDuration("EMS_POLL_TIMEOUT", 0)

	return Settings{
		Client:    client.ConfigFromEnv(),
		Poll:      spec,
		ChunkSize: getEnvInt("EMS_CHUNK_SIZE", upload.DefaultChunkSize),
	}
}

// newContext validates settings and wires the actions context for poolID
func newContext(settings Settings, poolID string) (*actions.Context, error) {
	if err := settings.Poll.Validate(); err != nil {
		return nil, err
	}
	api, err := client.New(settings.Client)
	if err != nil {
		return nil, err
	}
	return actions.NewContext(api, poolID,
		[]operation.Option{operation.WithPollSpec(settings.Poll)},
		[]upload.Option{upload.WithChunkSize(settings.ChunkSize)})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
