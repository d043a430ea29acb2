/*
Package admin implements the cluster-administration calls the teacher's
client.CallCreateTopic/CallApiVersions made over a one-shot dial per
call: CreateTopics, DeleteTopics, and ApiVersions. Out-of-core per
spec.md §1 (the producer/consumer path never needs them), kept per
SPEC_FULL.md §4.8 since the teacher ships them and administration is
something any complete client library offers alongside its data path.

Unlike the teacher's connect-and-call-once helpers, Client reuses a
broker.Pool so repeated admin calls against the same cluster share
connections with any Producer/Coordinator already running in the same
process.
*/
package admin

import (
	"context"
	"fmt"

	"github.com/cafegrp/cafegrp/broker"
	"github.com/cafegrp/cafegrp/proto/ApiVersions"
	"github.com/cafegrp/cafegrp/proto/CreateTopics"
	"github.com/cafegrp/cafegrp/proto/DeleteTopics"
	errcodes "github.com/cafegrp/cafegrp/proto/errors"
)

// Client issues administrative calls against a single bootstrap broker.
type Client struct {
	pool     *broker.Pool
	addr     string
	clientId string
}

func New(pool *broker.Pool, addr, clientId string) *Client {
	return &Client{pool: pool, addr: addr, clientId: clientId}
}

// TopicSpec describes one topic to create.
type TopicSpec struct {
	Topic             string
	NumPartitions     int32
	ReplicationFactor int16
	Configs           map[string]string
}

// CreateTopics creates every topic in specs, returning the first
// per-topic error encountered (if any); callers that need per-topic
// results should inspect TopicErrors on a direct proto/CreateTopics
// call instead.
func (c *Client) CreateTopics(ctx context.Context, specs []TopicSpec, timeoutMs int32) error {
	topics := make([]CreateTopics.TopicConfig, len(specs))
	for i, s := range specs {
		topics[i] = CreateTopics.TopicConfig{
			Topic:             s.Topic,
			NumPartitions:     s.NumPartitions,
			ReplicationFactor: s.ReplicationFactor,
			Configs:           s.Configs,
		}
	}
	conn := c.pool.Get(c.addr)
	resp, err := conn.Request(ctx, CreateTopics.NewRequest(c.clientId, topics, timeoutMs))
	if err != nil {
		return fmt.Errorf("admin: error calling CreateTopics: %w", err)
	}
	body := &CreateTopics.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return fmt.Errorf("admin: error unmarshaling CreateTopics response: %w", err)
	}
	results := make([]topicResult, len(body.TopicErrors))
	for i, t := range body.TopicErrors {
		results[i] = topicResult{Topic: t.Topic, Error: t.Error}
	}
	return firstTopicError("creating", results)
}

// DeleteTopics deletes every named topic.
func (c *Client) DeleteTopics(ctx context.Context, topics []string, timeoutMs int32) error {
	conn := c.pool.Get(c.addr)
	resp, err := conn.Request(ctx, DeleteTopics.NewRequest(c.clientId, topics, timeoutMs))
	if err != nil {
		return fmt.Errorf("admin: error calling DeleteTopics: %w", err)
	}
	body := &DeleteTopics.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return fmt.Errorf("admin: error unmarshaling DeleteTopics response: %w", err)
	}
	results := make([]topicResult, len(body.TopicErrors))
	for i, t := range body.TopicErrors {
		results[i] = topicResult{Topic: t.Topic, Error: t.Error}
	}
	return firstTopicError("deleting", results)
}

// topicResult is the common shape of CreateTopics.TopicError and
// DeleteTopics.TopicError, factored out so the error-picking logic
// below can be tested without a live broker.
type topicResult struct {
	Topic string
	Error int16
}

func firstTopicError(action string, results []topicResult) error {
	for _, r := range results {
		if code := errcodes.Code(r.Error); code != errcodes.NONE {
			return fmt.Errorf("admin: error %s topic %q: %s", action, r.Topic, code)
		}
	}
	return nil
}

// ApiVersion is one API key's supported version range, as reported by
// the broker.
type ApiVersion struct {
	ApiKey     int16
	MinVersion int16
	MaxVersion int16
}

// ApiVersions probes which API versions the bootstrap broker supports,
// grounded on the teacher's CallApiVersions — used by callers deciding
// whether it's safe to issue a version-sensitive call like CreateTopics
// against a given cluster.
func (c *Client) ApiVersions(ctx context.Context) ([]ApiVersion, error) {
	conn := c.pool.Get(c.addr)
	resp, err := conn.Request(ctx, ApiVersions.NewRequest(c.clientId))
	if err != nil {
		return nil, fmt.Errorf("admin: error calling ApiVersions: %w", err)
	}
	body := &ApiVersions.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("admin: error unmarshaling ApiVersions response: %w", err)
	}
	if code := errcodes.Code(body.Error); code != errcodes.NONE {
		return nil, fmt.Errorf("admin: ApiVersions error: %s", code)
	}
	out := make([]ApiVersion, len(body.ApiVersions))
	for i, v := range body.ApiVersions {
		out[i] = ApiVersion{ApiKey: v.ApiKey, MinVersion: v.MinVersion, MaxVersion: v.MaxVersion}
	}
	return out, nil
}
