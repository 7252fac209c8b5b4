package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// FailurePolicy decides what happens to an optimistic write when the server
// rejects the mutation behind it.
type FailurePolicy string

const (
	// PolicyRollback restores the state and cache from before the write.
	PolicyRollback FailurePolicy = "rollback"
	// PolicyKeepOptimistic leaves the optimistic write in place.
	PolicyKeepOptimistic FailurePolicy = "keep"
)

type Config struct {
	APIURL            string        // VITRO_API_URL (default "http://localhost:3000")
	Token             string        // VITRO_TOKEN (optional)
	NATSURL           string        // VITRO_NATS_URL (optional, empty = no record events)
	DatabaseURL       string        // VITRO_DATABASE_URL (optional, enables snapshot store)
	Workspace         string        // VITRO_WORKSPACE (default "default")
	WorkspaceMemberID string        // VITRO_WORKSPACE_MEMBER_ID (required for favorites)
	FailurePolicy     FailurePolicy // VITRO_FAILURE_POLICY (default "rollback")

	// Snapshot settings
	SnapshotInterval   time.Duration // VITRO_SNAPSHOT_INTERVAL (default 5m; 0 = disabled)
	SnapshotS3Bucket   string        // VITRO_SNAPSHOT_S3_BUCKET (enables S3 when set)
	SnapshotS3Endpoint string        // VITRO_SNAPSHOT_S3_ENDPOINT (custom endpoint for MinIO)
	SnapshotS3Region   string        // VITRO_SNAPSHOT_S3_REGION (default "us-east-1")
	SnapshotS3Key      string        // VITRO_SNAPSHOT_S3_KEY (default "vitro/cache.jsonl")
}

func Load() (*Config, error) {
	c := &Config{
		APIURL:             envOrDefault("VITRO_API_URL", "http://localhost:3000"),
		Token:              os.Getenv("VITRO_TOKEN"),
		NATSURL:            os.Getenv("VITRO_NATS_URL"),
		DatabaseURL:        os.Getenv("VITRO_DATABASE_URL"),
		Workspace:          envOrDefault("VITRO_WORKSPACE", "default"),
		WorkspaceMemberID:  os.Getenv("VITRO_WORKSPACE_MEMBER_ID"),
		SnapshotS3Bucket:   os.Getenv("VITRO_SNAPSHOT_S3_BUCKET"),
		SnapshotS3Endpoint: os.Getenv("VITRO_SNAPSHOT_S3_ENDPOINT"),
		SnapshotS3Region:   envOrDefault("VITRO_SNAPSHOT_S3_REGION", "us-east-1"),
		SnapshotS3Key:      envOrDefault("VITRO_SNAPSHOT_S3_KEY", "vitro/cache.jsonl"),
	}

	policy, err := ParseFailurePolicy(envOrDefault("VITRO_FAILURE_POLICY", string(PolicyRollback)))
	if err != nil {
		return nil, fmt.Errorf("VITRO_FAILURE_POLICY: %w", err)
	}
	c.FailurePolicy = policy

	intervalStr := envOrDefault("VITRO_SNAPSHOT_INTERVAL", "5m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("VITRO_SNAPSHOT_INTERVAL: %w", err)
		}
		c.SnapshotInterval = d
	}

	return c, nil
}

// ParseFailurePolicy accepts "rollback" and "keep" (case-insensitive).
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyRollback, PolicyKeepOptimistic:
		return p, nil
	}
	return "", fmt.Errorf("invalid failure policy %q (want %q or %q)", s, PolicyRollback, PolicyKeepOptimistic)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
