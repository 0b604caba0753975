package worker

import (
	"log"

	"liquid-tasks/internal/notify"
)

// AlertSink routes deadline alerts through the job queue so delivery happens
// off the scan loop. If enqueueing fails the alert falls back to the direct
// sink rather than being lost.
type AlertSink struct {
	queue    *JobQueue
	name     string
	fallback notify.Sink
}

func NewAlertSink(queue *JobQueue, queueName string, fallback notify.Sink) *AlertSink {
	return &AlertSink{queue: queue, name: queueName, fallback: fallback}
}

func (s *AlertSink) Notify(title, body string) {
	err := s.queue.Enqueue(s.name, JobTypeDeadlineAlert, map[string]interface{}{
		"title": title,
		"body":  body,
	})
	if err == nil {
		return
	}
	log.Printf("⚠️  Failed to enqueue deadline alert, delivering directly: %v", err)
	if s.fallback != nil {
		s.fallback.Notify(title, body)
	}
}
