package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/utils"
)

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	l.InitLogger()
	return l
}

type recordingListener struct {
	BaseEventListener
	handled []dto.Event
	err     error
}

func (l *recordingListener) Handle(_ context.Context, event any) error {
	l.handled = append(l.handled, event.(dto.Event))
	return l.err
}

// roundTrip serializes an event the way it travels over the queue.
func roundTrip(t *testing.T, event dto.Event) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestNewEvent(t *testing.T) {
	ctx := utils.SetAccountInContext(context.Background(), "tenant", "acc1")
	event := newEvent(ctx, "acc1", enum.EMAIL_ACCOUNT, &dto.SyncEmailAccount{AccountID: "acc1"}, "trace")

	assert.Equal(t, "SyncEmailAccount", event.Event.EventType)
	assert.Equal(t, "tenant", event.Event.Tenant)
	assert.Equal(t, "acc1", event.Event.EntityId)
	assert.Equal(t, enum.EMAIL_ACCOUNT, event.Event.EntityType)
	assert.Equal(t, "trace", event.Metadata.UberTraceId)
	assert.NotEmpty(t, event.Event.Id)
}

func TestValidateAndDecode(t *testing.T) {
	ctx := utils.SetTenantInContext(context.Background(), "tenant")
	notBefore := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	published := newEvent(ctx, "acc1", enum.EMAIL_ACCOUNT, dto.SyncEmailAccount{AccountID: "acc1", Continuation: true, NotBefore: notBefore}, "")

	var received dto.Event
	require.NoError(t, json.Unmarshal(roundTrip(t, published), &received))

	listener := NewBaseEventListener(testLogger(), GetEventType[dto.SyncEmailAccount](), QueueEmailSync)
	validated, err := listener.ValidateBaseEvent(ctx, received)
	require.NoError(t, err)

	decoded, err := DecodeEventData[dto.SyncEmailAccount](ctx, validated)
	require.NoError(t, err)
	assert.Equal(t, "acc1", decoded.AccountID)
	assert.True(t, decoded.Continuation)
	assert.True(t, notBefore.Equal(decoded.NotBefore))
}

func TestValidateBaseEvent_Rejects(t *testing.T) {
	ctx := utils.SetTenantInContext(context.Background(), "tenant")
	listener := NewBaseEventListener(testLogger(), GetEventType[dto.SyncEmailAccount](), QueueEmailSync)
	valid := newEvent(ctx, "acc1", enum.EMAIL_ACCOUNT, dto.SyncEmailAccount{AccountID: "acc1"}, "")

	_, err := listener.ValidateBaseEvent(context.Background(), valid)
	assert.ErrorIs(t, err, internalerrors.ErrTenantMissing)

	_, err = listener.ValidateBaseEvent(ctx, "not an event")
	assert.Error(t, err)

	wrongType := newEvent(ctx, "acc1", enum.EMAIL_ACCOUNT, dto.FirstSyncEmailAccount{AccountID: "acc1"}, "")
	_, err = listener.ValidateBaseEvent(ctx, wrongType)
	assert.Error(t, err)

	noEntity := valid
	noEntity.Event.EntityId = ""
	_, err = listener.ValidateBaseEvent(ctx, noEntity)
	assert.Error(t, err)
}

func TestSubscriber_ProcessMessageDispatchesByEventType(t *testing.T) {
	log := testLogger()
	subscriber := &RabbitMQSubscriber{logger: log, listeners: make(map[string]interfaces.EventListener)}
	syncListener := &recordingListener{BaseEventListener: NewBaseEventListener(log, GetEventType[dto.SyncEmailAccount](), QueueEmailSync)}
	subscriber.RegisterListener(syncListener)

	ctx := utils.SetTenantInContext(context.Background(), "tenant")
	body := roundTrip(t, newEvent(ctx, "acc1", enum.EMAIL_ACCOUNT, dto.SyncEmailAccount{AccountID: "acc1"}, ""))

	require.NoError(t, subscriber.processMessage(body, QueueEmailSync))
	require.Len(t, syncListener.handled, 1)
	assert.Equal(t, "tenant", syncListener.handled[0].Event.Tenant)

	// wrong queue and unknown event types are acknowledged without handling
	require.NoError(t, subscriber.processMessage(body, QueueEmailActions))
	other := roundTrip(t, newEvent(ctx, "m1", enum.EMAIL_MESSAGE, dto.ArchiveEmailMessage{MessageID: "m1"}, ""))
	require.NoError(t, subscriber.processMessage(other, QueueEmailActions))
	assert.Len(t, syncListener.handled, 1)

	syncListener.err = errors.New("boom")
	assert.Error(t, subscriber.processMessage(body, QueueEmailSync))

	assert.Error(t, subscriber.processMessage([]byte("{"), QueueEmailSync))
}

func TestQueueTopology(t *testing.T) {
	routingKeys := map[string]string{}
	for _, binding := range queueBindings {
		routingKeys[binding.queue] = binding.routingKey
		assert.Equal(t, binding.queue+"-dlq", binding.dlq)
	}
	assert.Equal(t, map[string]string{
		QueueEmailSync:    RoutingKeyEmailSync,
		QueueEmailActions: RoutingKeyEmailActions,
	}, routingKeys)

	args := queueArguments(DefaultMessageTTL.Milliseconds())
	assert.Equal(t, ExchangeDeadLetter, args["x-dead-letter-exchange"])
	assert.Equal(t, int64(86400000), args["x-message-ttl"])
}
