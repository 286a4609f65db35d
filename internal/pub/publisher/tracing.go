package publisher

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ypapub/internal/pub"
	"ypapub/internal/pub/tracing"
)

// TracedPublisher wraps a pub.Publisher with distributed tracing
// Layer order: TracedPublisher -> MetricsPublisher -> Publisher (real thing)
type TracedPublisher struct {
	publisher pub.Publisher
	tracer    *tracing.Tracer
}

// NewTracedPublisher creates a new traced publisher that wraps a metrics publisher
func NewTracedPublisher(publisher pub.Publisher, tracer *tracing.Tracer) pub.Publisher {
	return &TracedPublisher{
		publisher: publisher,
		tracer:    tracer,
	}
}

// Publish implements pub.Publisher.Publish with distributed tracing
func (p *TracedPublisher) Publish(ctx context.Context, messages ...pub.Message) (*pub.Result, error) {
	ctx, span := p.tracer.StartSpan(ctx, "publisher.publish")
	defer span.End()

	span.SetAttributes(p.tracer.PublisherAttributes(p.Topic(), len(messages))...)

	// the wrapped publisher injects this span's context into the outbound request
	result, err := p.publisher.Publish(ctx, messages...)

	if err != nil {
		p.tracer.RecordError(ctx, err)
	} else {
		span.SetAttributes(attribute.Int("pub.message_ids_count", len(result.MessageIDs)))
		p.tracer.SetStatus(ctx, codes.Ok, "")
	}

	span.SetAttributes(p.tracer.ErrorAttributes(err)...)

	return result, err
}

// Close implements pub.Publisher.Close with distributed tracing
func (p *TracedPublisher) Close(ctx context.Context) error {
	ctx, span := p.tracer.StartSpan(ctx, "publisher.close")
	defer span.End()

	span.SetAttributes(p.tracer.PubAttributes(p.Topic())...)

	err := p.publisher.Close(ctx)
	if err != nil {
		p.tracer.RecordError(ctx, err)
	} else {
		p.tracer.SetStatus(ctx, codes.Ok, "")
	}

	return err
}

func (p *TracedPublisher) Topic() pub.Topic {
	return p.publisher.Topic()
}
