package listeners

import (
	"time"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/services/events"
	"github.com/customeros/mailsync/services/tasks"
)

// Listeners builds the queue listeners for every task the service runs.
func Listeners(log logger.Logger, taskService *tasks.Service) []interfaces.EventListener {
	return []interfaces.EventListener{
		// sync
		NewTaskListener(log, events.QueueEmailSync, taskService.SynchronizeEmailAccount).
			WithNotBefore(func(task dto.SyncEmailAccount) time.Time { return task.NotBefore }),
		NewTaskListener(log, events.QueueEmailSync, taskService.FirstSynchronizeEmailAccount).
			WithNotBefore(func(task dto.FirstSyncEmailAccount) time.Time { return task.NotBefore }),

		// message actions
		NewTaskListener(log, events.QueueEmailActions, taskService.ToggleRead),
		NewTaskListener(log, events.QueueEmailActions, taskService.Archive),
		NewTaskListener(log, events.QueueEmailActions, taskService.Trash),
		NewTaskListener(log, events.QueueEmailActions, taskService.Delete),
		NewTaskListener(log, events.QueueEmailActions, taskService.AddAndRemoveLabels),

		// outbox
		NewTaskListener(log, events.QueueEmailActions, taskService.SendMessage),
		NewTaskListener(log, events.QueueEmailActions, taskService.CreateDraft),
		NewTaskListener(log, events.QueueEmailActions, taskService.UpdateDraft),
	}
}

// Register subscribes all listeners and starts consuming their queues.
func Register(subscriber interfaces.EventSubscriber, listeners []interfaces.EventListener) error {
	queues := make(map[string]struct{})
	for _, listener := range listeners {
		subscriber.RegisterListener(listener)
		queues[listener.GetQueueName()] = struct{}{}
	}

	for queue := range queues {
		if err := subscriber.ListenQueue(queue); err != nil {
			return err
		}
	}
	return nil
}
