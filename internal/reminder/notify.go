package reminder

import (
	"context"

	"classattend/internal/logger"
	"classattend/internal/metrics"
	"classattend/internal/queue"
)

// Notifier delivers a notice to a student.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// LogNotifier writes notices to the log.
type LogNotifier struct {
	Log *logger.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notice) error {
	log := l.Log
	if log == nil {
		log = logger.Default()
	}
	log.Infof("notice for %s/%s: %s: %s", n.ClassName, n.RollNumber, n.Title, n.Body)
	return nil
}

// Deliver drains msgs until the channel closes, handing reminder notices to
// n. It returns the number delivered.
func Deliver(ctx context.Context, msgs <-chan queue.Message, n Notifier, log *logger.Logger) int {
	if log == nil {
		log = logger.Default()
	}
	delivered := 0
	for msg := range msgs {
		if msg.Type != MessageType {
			log.Debugf("skipping message of type %q", msg.Type)
			continue
		}
		var notice Notice
		if err := msg.Decode(&notice); err != nil {
			metrics.Reminders.WithLabelValues("deliver", "decode_error").Inc()
			log.Warnf("bad reminder message: %v", err)
			continue
		}
		if err := n.Notify(ctx, notice); err != nil {
			metrics.Reminders.WithLabelValues("deliver", "error").Inc()
			log.Errorf("notify %s/%s: %v", notice.ClassID, notice.RollNumber, err)
			continue
		}
		metrics.Reminders.WithLabelValues("deliver", "ok").Inc()
		delivered++
	}
	return delivered
}
