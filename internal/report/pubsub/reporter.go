// Package pubsub fans check reports out to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/webmonitor/internal/monitor"
)

// Config names the topic reports are published to.
type Config struct {
	ProjectID string
	TopicName string
}

// Reporter publishes every report as a JSON message.
type Reporter struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	owned  bool
}

// New creates a client with Application Default Credentials and checks that
// the topic exists.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*Reporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProjectID == "" || cfg.TopicName == "" {
		return nil, fmt.Errorf("pubsub project_id and topic_name are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	closeClient := func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close pubsub client after topic check", zap.Error(closeErr))
		}
	}

	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		closeClient()
		return nil, fmt.Errorf("check pubsub topic %q: %w", cfg.TopicName, err)
	}
	if !exists {
		closeClient()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicName, cfg.ProjectID)
	}
	return &Reporter{client: client, topic: topic, owned: true}, nil
}

// NewWithClient uses an existing client. The caller keeps ownership of it.
func NewWithClient(client *pubsub.Client, topicName string) (*Reporter, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if topicName == "" {
		return nil, fmt.Errorf("topic name is required")
	}
	return &Reporter{client: client, topic: client.Topic(topicName)}, nil
}

// Report publishes the report and waits for the server to accept it.
func (r *Reporter) Report(ctx context.Context, report monitor.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"url":      report.URL,
			"kind":     string(report.Kind),
			"cycle_id": report.CycleID,
		},
	}
	if _, err := r.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish report %s: %w", report.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the client when New created it.
func (r *Reporter) Close() error {
	r.topic.Stop()
	if !r.owned {
		return nil
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (r *Reporter) Name() string { return "pubsub" }
