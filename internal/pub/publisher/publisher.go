package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"ypapub/internal/pub"
	"ypapub/internal/validator"
)

// publishTimeout bounds every publish request, including reading the response.
const publishTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response body is kept in the error.
const maxErrorBody = 1024

// maxDrainBody caps how much unread response body is discarded to keep the
// connection reusable. Anything longer closes the connection instead.
const maxDrainBody = 64 << 10

// Config identifies the topic a Publisher targets.
type Config struct {
	ProjectID string `env:"PUBSUB_PROJECT_ID"`
	TopicName string `env:"PUBSUB_TOPIC_NAME"`
	Host      string `env:"PUBSUB_HOST" envDefault:"http://localhost:8085"`
}

// Publisher publishes message batches to a topic over the broker's HTTP API.
// It lazily opens one HTTP session on first use and reuses it until Close.
type Publisher struct {
	topic  pub.Topic
	host   string
	logger *zap.Logger

	mu         sync.Mutex
	session    *http.Client
	newSession func() *http.Client
}

func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if err := validator.Validate("publisher", logger); err != nil {
		return nil, fmt.Errorf("failed to validate publisher deps: %w", err)
	}

	return &Publisher{
		topic: pub.Topic{
			ProjectID: cfg.ProjectID,
			Name:      cfg.TopicName,
		},
		host:       cfg.Host,
		logger:     logger.Named("publisher"),
		newSession: newSession,
	}, nil
}

func (p *Publisher) Topic() pub.Topic {
	return p.topic
}

func (p *Publisher) Host() string {
	return p.host
}

// URL is the publish endpoint for the configured topic.
func (p *Publisher) URL() string {
	return pub.PublishURL(p.host, p.topic)
}

// Publish implements pub.Publisher.Publish. It issues exactly one request for the batch.
func (p *Publisher) Publish(ctx context.Context, messages ...pub.Message) (*pub.Result, error) {
	body, err := pub.NewPublishRequest(messages...)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal publish request: %w", err)
	}

	session := p.acquireSession()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL(), bytes.NewReader(payload))
	if err != nil {
		return nil, &pub.PublishError{Kind: pub.FailureNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := session.Do(req)
	if err != nil {
		return nil, &pub.PublishError{Kind: pub.FailureNetwork, Err: err}
	}
	defer func() {
		// drain so the connection goes back to the session's idle pool
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBody))
		resp.Body.Close()
		p.releaseStale(session)
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &pub.PublishError{
			Kind:       pub.FailureStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s: %s", pub.ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(b))),
		}
	}

	result, err := decodeResult(resp.Body)
	if err != nil {
		return nil, &pub.PublishError{Kind: pub.FailureResponse, StatusCode: resp.StatusCode, Err: err}
	}

	p.logger.Info(fmt.Sprintf("published %d messages", len(messages)),
		zap.Stringer("topic", p.topic),
		zap.Strings("messageIds", result.MessageIDs),
	)

	return result, nil
}

// Close implements pub.Publisher.Close. Requests already in flight on the
// released session are allowed to finish; their connections are closed once they do.
func (p *Publisher) Close(_ context.Context) error {
	p.mu.Lock()
	session := p.session
	p.session = nil
	p.mu.Unlock()

	if session == nil {
		return nil
	}

	session.CloseIdleConnections()
	p.logger.Info("publisher session closed", zap.Stringer("topic", p.topic))

	return nil
}

func (p *Publisher) acquireSession() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		p.session = p.newSession()
		p.logger.Debug("publisher session opened", zap.String("host", p.host))
	}

	return p.session
}

// releaseStale closes the idle connections of a session that Close released
// while a request was still running on it.
func (p *Publisher) releaseStale(session *http.Client) {
	p.mu.Lock()
	stale := p.session != session
	p.mu.Unlock()

	if stale {
		session.CloseIdleConnections()
	}
}

// newSession returns a client with a transport of its own, so closing it
// never touches connections held by other publishers.
func newSession() *http.Client {
	return &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
		Timeout:   publishTimeout,
	}
}

func decodeResult(r io.Reader) (*pub.Result, error) {
	var body map[string]any
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode publish response: %w", err)
	}

	result := pub.Result{Body: body}
	if ids, ok := body["messageIds"].([]any); ok {
		result.MessageIDs = make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok {
				result.MessageIDs = append(result.MessageIDs, s)
			}
		}
	}

	return &result, nil
}
