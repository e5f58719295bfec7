package customer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/seido/internal/cache"
	"github.com/Additional-Code/seido/internal/messaging"
	customersvc "github.com/Additional-Code/seido/internal/service/customer"
	"github.com/Additional-Code/seido/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/seido/worker/customer")

var handlerGroup = fx.ResultTags(`group:"worker.handlers"`)

// Module registers customer event handlers.
var Module = fx.Module("worker_customer",
	fx.Provide(
		fx.Annotate(NewCreatedHandler, handlerGroup),
		fx.Annotate(NewUpdatedHandler, handlerGroup),
		fx.Annotate(NewDeletedHandler, handlerGroup),
	),
)

// NewCreatedHandler logs new customers.
func NewCreatedHandler(logger *zap.Logger) worker.HandlerRegistration {
	return registration(customersvc.EventCreated, logger, func(context.Context, customersvc.Event) error {
		return nil
	})
}

// NewUpdatedHandler evicts the updated customer from the cache.
func NewUpdatedHandler(logger *zap.Logger, store cache.Store) worker.HandlerRegistration {
	return registration(customersvc.EventUpdated, logger, evict(store))
}

// NewDeletedHandler evicts the deleted customer from the cache.
func NewDeletedHandler(logger *zap.Logger, store cache.Store) worker.HandlerRegistration {
	return registration(customersvc.EventDeleted, logger, evict(store))
}

func evict(store cache.Store) func(context.Context, customersvc.Event) error {
	return func(ctx context.Context, ev customersvc.Event) error {
		return store.Delete(ctx, customersvc.CacheKey(ev.CustomerID))
	}
}

func registration(eventType string, logger *zap.Logger, apply func(context.Context, customersvc.Event) error) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.customers.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("event.type", eventType),
		))
		defer span.End()

		var ev customersvc.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Error("failed to decode customer event", zap.String("type", eventType), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return fmt.Errorf("decode %s: %w", eventType, err)
		}

		if err := apply(ctx, ev); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler error")
			return err
		}

		logger.Info("customer event processed",
			zap.String("type", ev.Type),
			zap.Stringer("id", ev.CustomerID),
			zap.Int64("offset", msg.Offset),
		)
		return nil
	}

	return worker.HandlerRegistration{EventType: eventType, Handler: handler}
}
