package publisher

import (
	"context"
	"time"

	"ypapub/internal/pub"
	"ypapub/internal/pub/metrics"
)

// MetricsPublisher wraps a pub.Publisher with metrics collection
type MetricsPublisher struct {
	publisher pub.Publisher
	registry  *metrics.Registry
}

// NewMetricsPublisher creates a new instrumented publisher
func NewMetricsPublisher(publisher pub.Publisher, registry *metrics.Registry) pub.Publisher {
	return &MetricsPublisher{
		publisher: publisher,
		registry:  registry,
	}
}

// Publish implements pub.Publisher.Publish with metrics collection
func (p *MetricsPublisher) Publish(ctx context.Context, messages ...pub.Message) (*pub.Result, error) {
	start := time.Now()

	result, err := p.publisher.Publish(ctx, messages...)
	duration := time.Since(start)

	p.registry.RecordPublish(p.Topic().Name, len(messages), duration, err)

	return result, err
}

// Close implements pub.Publisher.Close with metrics collection
func (p *MetricsPublisher) Close(ctx context.Context) error {
	err := p.publisher.Close(ctx)

	p.registry.RecordClose(p.Topic().Name, err)

	return err
}

func (p *MetricsPublisher) Topic() pub.Topic {
	return p.publisher.Topic()
}
