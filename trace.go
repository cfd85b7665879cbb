package smbclient

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smbclient-go/smbclient/internal/logger"
)

const tracerName = "github.com/smbclient-go/smbclient"

// Span attribute keys.
const (
	attrServer    = "server.address"
	attrDialect   = "smb.dialect"
	attrShare     = "fs.share"
	attrPath      = "fs.path"
	attrNewPath   = "fs.new_path"
	attrBytes     = "fs.bytes"
	attrSessionID = "smb.session_id"
)

func newTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// startSpan opens a span for a public operation and carries its ids into
// the log context. The returned func ends the span, recording *errp.
func (c *Client) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(errp *error)) {
	ctx, span := c.tracer.Start(ctx, "smb."+op, trace.WithAttributes(attrs...))

	lc := &logger.LogContext{Operation: op, Share: c.shareName()}
	if sc := span.SpanContext(); sc.IsValid() {
		lc.TraceID = sc.TraceID().String()
		lc.SpanID = sc.SpanID().String()
	}
	ctx = logger.WithContext(ctx, lc)

	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}
