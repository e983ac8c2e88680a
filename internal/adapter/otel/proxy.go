package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/modgate/internal/domain"
)

// TracingProxy wraps a domain.ModuleProxy with OpenTelemetry tracing.
type TracingProxy struct {
	next   domain.ModuleProxy
	tracer trace.Tracer
}

// Compile-time check: TracingProxy implements domain.ModuleProxy.
var _ domain.ModuleProxy = (*TracingProxy)(nil)

// NewTracingProxy creates a tracing decorator around the given proxy.
func NewTracingProxy(next domain.ModuleProxy) *TracingProxy {
	return &TracingProxy{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingProxy) CallSystemInterface(ctx context.Context, tenantID, moduleID, path string, body []byte) error {
	ctx, span := p.tracer.Start(ctx, "ModuleProxy.CallSystemInterface",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("module.id", moduleID),
			attribute.String("interface.path", path),
		),
	)
	defer span.End()

	err := p.next.CallSystemInterface(ctx, tenantID, moduleID, path, body)
	recordError(span, err)
	return err
}

func (p *TracingProxy) AutoDeploy(ctx context.Context, md *domain.ModuleDescriptor) error {
	ctx, span := p.tracer.Start(ctx, "ModuleProxy.AutoDeploy",
		trace.WithAttributes(attribute.String("module.id", md.ID)),
	)
	defer span.End()

	err := p.next.AutoDeploy(ctx, md)
	recordError(span, err)
	return err
}

func (p *TracingProxy) AutoUndeploy(ctx context.Context, md *domain.ModuleDescriptor) error {
	ctx, span := p.tracer.Start(ctx, "ModuleProxy.AutoUndeploy",
		trace.WithAttributes(attribute.String("module.id", md.ID)),
	)
	defer span.End()

	err := p.next.AutoUndeploy(ctx, md)
	recordError(span, err)
	return err
}
