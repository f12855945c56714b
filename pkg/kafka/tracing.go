package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// messageCarrier adapts a kafka.Message header slice to the OpenTelemetry
// TextMapCarrier interface so W3C trace context rides along with the event.
type messageCarrier struct {
	headers *[]kafka.Header
}

// Get returns the first header value for key, or "" if absent.
func (c messageCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set stores the pair, overwriting an existing header with the same key.
func (c messageCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

// Keys lists all header keys.
func (c messageCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectTraceContext writes the trace context from ctx into the message
// headers using the global propagator.
func InjectTraceContext(ctx context.Context, headers *[]kafka.Header) {
	otel.GetTextMapPropagator().Inject(ctx, messageCarrier{headers: headers})
}

// ExtractTraceContext returns a context carrying any trace context found in
// the message headers, so the consumer span joins the producer's trace.
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, messageCarrier{headers: &headers})
}
