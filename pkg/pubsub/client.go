// Package pubsub is the Google Cloud Pub/Sub side of the outbox: one client,
// one cached publisher per topic.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("pubsub: gcp project id is required")
	errNoDomainTopic     = errors.New("pubsub: domain topic is required")
	errClosed            = errors.New("pubsub: client not initialized")
)

// Client owns the gRPC connection and every publisher created from it.
// Publishers batch in background goroutines, so they are created once per
// topic and stopped on Close.
type Client struct {
	gcp         *gcppubsub.Client
	projectID   string
	domainTopic string

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

// NewClient connects and fails fast when the domain topic does not exist.
// Credentials come from CredentialsJSON when set, otherwise from application
// default credentials or PUBSUB_EMULATOR_HOST.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errNoDomainTopic
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	conn, err := gcppubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect: %w", err)
	}

	c := &Client{
		gcp:         conn,
		projectID:   projectID,
		domainTopic: topic,
		publishers:  make(map[string]*gcppubsub.Publisher),
	}
	if err := c.checkTopic(ctx, topic); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", TopicResourceName(projectID, topic)), "pubsub connected")
	}
	return c, nil
}

func (c *Client) checkTopic(ctx context.Context, topic string) error {
	name := TopicResourceName(c.projectID, topic)
	if name == "" {
		return fmt.Errorf("pubsub: topic %q has no resource name", topic)
	}
	_, err := c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub: topic %s does not exist", name)
	default:
		return fmt.Errorf("pubsub: get topic %s: %w", name, err)
	}
}

// Publisher returns the shared publisher for topic, creating it on first use.
func (c *Client) Publisher(topic string) *gcppubsub.Publisher {
	if c == nil || c.gcp == nil {
		return nil
	}
	name := TopicResourceName(c.projectID, topic)
	if name == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[name]; ok {
		return pub
	}
	pub := c.gcp.Publisher(name)
	c.publishers[name] = pub
	return pub
}

func (c *Client) DomainPublisher() *gcppubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.domainTopic)
}

// Ping looks the domain topic up again.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errClosed
	}
	return c.checkTopic(ctx, c.domainTopic)
}

// Close flushes pending messages of every publisher before closing the
// connection.
func (c *Client) Close() error {
	if c == nil || c.gcp == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.gcp.Close()
}

// TopicResourceName expands a topic id to projects/<project>/topics/<id>.
// Names that are already full resource names pass through.
func TopicResourceName(projectID, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + topic
}
