package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/modgate/internal/domain"
)

const tracerName = "github.com/neomorfeo/modgate/internal/adapter/otel"

// TracingStore wraps a domain.TenantStore with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingStore struct {
	next   domain.TenantStore
	tracer trace.Tracer
}

// Compile-time check: TracingStore implements domain.TenantStore.
var _ domain.TenantStore = (*TracingStore)(nil)

// NewTracingStore creates a tracing decorator around the given store.
func NewTracingStore(next domain.TenantStore) *TracingStore {
	return &TracingStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingStore) Insert(ctx context.Context, t *domain.Tenant) error {
	ctx, span := s.tracer.Start(ctx, "TenantStore.Insert",
		trace.WithAttributes(attribute.String("tenant.id", t.ID())),
	)
	defer span.End()

	err := s.next.Insert(ctx, t)
	recordError(span, err)
	return err
}

func (s *TracingStore) UpdateDescriptor(ctx context.Context, td domain.TenantDescriptor) error {
	ctx, span := s.tracer.Start(ctx, "TenantStore.UpdateDescriptor",
		trace.WithAttributes(attribute.String("tenant.id", td.ID)),
	)
	defer span.End()

	err := s.next.UpdateDescriptor(ctx, td)
	recordError(span, err)
	return err
}

func (s *TracingStore) UpdateModules(ctx context.Context, id string, enabled []domain.ModuleActivation) error {
	ctx, span := s.tracer.Start(ctx, "TenantStore.UpdateModules",
		trace.WithAttributes(
			attribute.String("tenant.id", id),
			attribute.Int("modules.count", len(enabled)),
		),
	)
	defer span.End()

	err := s.next.UpdateModules(ctx, id, enabled)
	recordError(span, err)
	return err
}

func (s *TracingStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "TenantStore.Delete",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	err := s.next.Delete(ctx, id)
	recordError(span, err)
	return err
}

func (s *TracingStore) List(ctx context.Context) ([]*domain.Tenant, error) {
	ctx, span := s.tracer.Start(ctx, "TenantStore.List")
	defer span.End()

	tenants, err := s.next.List(ctx)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(tenants)))
	}
	return tenants, err
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
