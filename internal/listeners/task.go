package listeners

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/services/events"
)

// TaskHandler runs one decoded task payload.
type TaskHandler[T any] func(ctx context.Context, task T) error

// TaskListener decodes events of type T and hands them to a task handler. Payloads that
// carry a not-before time are held until that moment.
type TaskListener[T any] struct {
	events.BaseEventListener
	handler   TaskHandler[T]
	notBefore func(T) time.Time
}

func NewTaskListener[T any](log logger.Logger, queueName string, handler TaskHandler[T]) *TaskListener[T] {
	return &TaskListener[T]{
		BaseEventListener: events.NewBaseEventListener(log, events.GetEventType[T](), queueName),
		handler:           handler,
	}
}

// WithNotBefore sets the accessor for the earliest execution time of a task.
func (l *TaskListener[T]) WithNotBefore(notBefore func(T) time.Time) *TaskListener[T] {
	l.notBefore = notBefore
	return l
}

func (l *TaskListener[T]) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TaskListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	span.SetTag("event.type", l.GetEventType())
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, validatedEvent.Event.EntityId)

	task, err := events.DecodeEventData[T](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if l.notBefore != nil {
		if err := waitUntil(ctx, l.notBefore(task)); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	if err := l.handler(ctx, task); err != nil {
		tracing.TraceErr(span, err)
		l.Logger().Errorf("%s for %s failed: %v", l.GetEventType(), validatedEvent.Event.EntityId, err)
		return err
	}
	return nil
}

func waitUntil(ctx context.Context, at time.Time) error {
	if at.IsZero() {
		return nil
	}
	wait := at.Sub(utils.Now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ interfaces.EventListener = (*TaskListener[struct{}])(nil)
