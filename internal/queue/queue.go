package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
	"github.com/unclebandit/anniversary-reminder/internal/service"
)

// TopicSweeps carries catch-up sweep triggers.
const TopicSweeps = "reminder_sweeps"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// SweepTrigger asks a consumer to run one catch-up sweep.
type SweepTrigger struct {
	Source      string    `json:"source"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewSweepTrigger(source string) SweepTrigger {
	return SweepTrigger{Source: source, RequestedAt: time.Now().UTC()}
}

// DecodeTrigger accepts a trigger published in-process or the JSON body of
// a broker message.
func DecodeTrigger(payload any) (SweepTrigger, error) {
	switch p := payload.(type) {
	case SweepTrigger:
		return p, nil
	case *SweepTrigger:
		return *p, nil
	case []byte:
		var t SweepTrigger
		if err := json.Unmarshal(p, &t); err != nil {
			return SweepTrigger{}, fmt.Errorf("decode sweep trigger: %w", err)
		}
		return t, nil
	}
	return SweepTrigger{}, fmt.Errorf("unexpected payload type %T", payload)
}

// InMemoryQueue delivers to in-process subscribers, retrying failed handlers
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]func(payload any) error
	MaxRetries int
	Backoff    time.Duration
}

// NewInMemoryQueue creates a new queue. A failed handler is retried once.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		MaxRetries: 1,
		Backoff:    500 * time.Millisecond,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish hands the payload to every subscriber of topic
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go q.processJob(handler, JobPayload{Payload: payload, MaxRetries: q.MaxRetries})
	}
	return nil
}

func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for {
		err := handler(job.Payload)
		if err == nil {
			return
		}

		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			log.Printf("❌ Job permanently failed after %d attempts: %v", job.RetryCount, err)
			return
		}
		log.Printf("⚠️ Job failed (attempt %d/%d): %v", job.RetryCount, job.MaxRetries+1, err)
		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// SweepHandler runs a sweep for every trigger. An overlapping trigger is
// dropped; a storage failure is returned so the queue may retry it.
func SweepHandler(ctx context.Context, runner service.SweepRunner) func(payload any) error {
	return func(payload any) error {
		trigger, err := DecodeTrigger(payload)
		if err != nil {
			log.Println("⚠️ Invalid sweep trigger:", err)
			return nil
		}

		log.Println("📩 Sweep trigger received from", trigger.Source)
		result, err := runner.RunCatchUp(ctx)
		if errors.Is(err, appErrors.ErrSweepInProgress) {
			log.Println("⚠️ Sweep already running, trigger dropped")
			return nil
		}
		if err != nil {
			return err
		}

		log.Printf("✅ Sweep done: %d day(s), %d sent, %d skipped, %d error(s)",
			result.Counts.Days, result.Counts.Processed, result.Counts.Skipped, result.Counts.Errors)
		return nil
	}
}

// StartSweepSubscriber wires the sweep handler to topic.
func StartSweepSubscriber(ctx context.Context, q Queue, topic string, runner service.SweepRunner) error {
	if err := q.Subscribe(topic, SweepHandler(ctx, runner)); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	log.Println("✅ Listening for sweep triggers on", topic)
	return nil
}
