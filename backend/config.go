package backend

import (
	"fmt"
	"net/url"
)

// QueueConfig holds per-queue settings. Zero-value fields fall back to the
// backend-wide defaults at enqueue time.
type QueueConfig struct {
	Name string
	// TargetURL overrides the backend default target for this queue.
	TargetURL string
	// HTTPMethod defaults to POST.
	HTTPMethod string
	// ServiceAccountEmail overrides the backend default OIDC identity the
	// queue service presents on callback.
	ServiceAccountEmail string
}

// Config is the immutable backend configuration, constructed once at
// startup and validated before any task is enqueued.
type Config struct {
	ProjectID string
	Location  string
	// CredentialsFile points at a service account key file; application
	// default credentials are used when empty.
	CredentialsFile string
	// DefaultTarget is the callback URL used by queues without an override.
	DefaultTarget string
	// ServiceAccountEmail is the default OIDC identity for callbacks.
	ServiceAccountEmail string
	// EnqueueOnCommit defers submissions to an explicit commit boundary
	// supplied by the caller. Without hooks, submission stays synchronous.
	EnqueueOnCommit bool
	Queues          []QueueConfig
}

// Validate rejects incomplete configuration up front so enqueue-time
// failures are limited to transport errors.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	if c.ProjectID == "" {
		return fmt.Errorf("%w: project ID is required", ErrInvalidConfig)
	}

	if c.Location == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidConfig)
	}

	if c.DefaultTarget != "" {
		if err := validateTargetURL(c.DefaultTarget); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(c.Queues))

	for _, queue := range c.Queues {
		if queue.Name == "" {
			return fmt.Errorf("%w: queue name is empty", ErrInvalidConfig)
		}

		if _, ok := seen[queue.Name]; ok {
			return fmt.Errorf("%w: queue %q configured twice", ErrInvalidConfig, queue.Name)
		}

		seen[queue.Name] = struct{}{}

		if queue.TargetURL != "" {
			if err := validateTargetURL(queue.TargetURL); err != nil {
				return err
			}
		}

		if queue.TargetURL == "" && c.DefaultTarget == "" {
			return fmt.Errorf("%w: queue %q", ErrMissingTarget, queue.Name)
		}
	}

	return nil
}

// queue resolves a queue name against the configured queues.
func (c *Config) queue(name string) (QueueConfig, error) {
	for _, queue := range c.Queues {
		if queue.Name == name {
			return queue, nil
		}
	}

	return QueueConfig{}, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
}

// target returns the effective target URL for a queue: its override when
// present, the backend default otherwise.
func (c *Config) target(queue QueueConfig) (string, error) {
	if queue.TargetURL != "" {
		return queue.TargetURL, nil
	}

	if c.DefaultTarget != "" {
		return c.DefaultTarget, nil
	}

	return "", fmt.Errorf("%w: queue %q", ErrMissingTarget, queue.Name)
}

// QueuePath returns the full Cloud Tasks queue resource name.
func (c *Config) QueuePath(queueName string) string {
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s", c.ProjectID, c.Location, queueName)
}

func validateTargetURL(target string) error {
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: target URL: %v", ErrInvalidConfig, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: target URL scheme must be http or https, got: %s",
			ErrInvalidConfig, parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%w: target URL host is empty", ErrInvalidConfig)
	}

	return nil
}
