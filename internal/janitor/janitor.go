// Package janitor deletes photo objects left behind when a record write
// failed and the immediate compensating delete failed too.
package janitor

import (
	"context"
	"errors"
	"log"
	"time"

	"mealcheck/internal/meal"
	"mealcheck/internal/metrics"
	"mealcheck/internal/queue"
	"mealcheck/internal/retry"
	"mealcheck/internal/storage"
)

// Publisher queues orphans. It implements meal.OrphanReporter.
type Publisher struct {
	Queue queue.Queue
	Now   func() time.Time
}

func (p Publisher) ReportOrphan(ctx context.Context, key string) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return p.Queue.Publish(ctx, queue.Message{Type: queue.TypeObjectOrphaned, Key: key, QueuedAt: now().UTC()})
}

// Worker consumes orphan messages.
type Worker struct {
	queue    queue.Queue
	objects  storage.ObjectStore
	records  meal.Repository
	attempts int
	calls    retry.Policy
}

func NewWorker(q queue.Queue, objects storage.ObjectStore, records meal.Repository, attempts int, backoff, timeout time.Duration) *Worker {
	if attempts <= 0 {
		attempts = 1
	}
	return &Worker{
		queue:    q,
		objects:  objects,
		records:  records,
		attempts: attempts,
		calls:    retry.Policy{Attempts: 2, Backoff: backoff, Timeout: timeout},
	}
}

// Run processes messages until ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if msg.Type != queue.TypeObjectOrphaned {
			log.Printf("[WARN] janitor: skip message type %q", msg.Type)
			continue
		}
		if err := w.Handle(ctx, msg); err != nil {
			w.requeue(ctx, msg, err)
		}
	}
	return ctx.Err()
}

// Handle deletes the object unless a record written since references it.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	referenced, err := w.referenced(ctx, msg.Key)
	if err != nil {
		return err
	}
	if referenced {
		log.Printf("[INFO] janitor: %s is referenced again, keeping it", msg.Key)
		metrics.Orphans.WithLabelValues("reclaimed").Inc()
		return nil
	}
	err = retry.Do(ctx, w.calls, func(ctx context.Context) error {
		err := w.objects.Delete(ctx, msg.Key)
		if errors.Is(err, storage.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		metrics.ExternalFailures.WithLabelValues("object_store").Inc()
		return err
	}
	log.Printf("[INFO] janitor: deleted orphan %s", msg.Key)
	metrics.Orphans.WithLabelValues("cleaned").Inc()
	return nil
}

func (w *Worker) referenced(ctx context.Context, key string) (bool, error) {
	athleteID, date, m, ok := storage.SplitKey(key)
	if !ok {
		return false, nil
	}
	mt, err := meal.ParseType(m)
	if err != nil {
		return false, nil
	}
	rec, err := retry.Value(ctx, w.calls, func(ctx context.Context) (*meal.Submission, error) {
		return w.records.Get(ctx, athleteID, date, mt)
	})
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("database").Inc()
		return false, err
	}
	return rec != nil && rec.ImageKey == key, nil
}

func (w *Worker) requeue(ctx context.Context, msg queue.Message, cause error) {
	msg.Attempt++
	if msg.Attempt >= w.attempts {
		log.Printf("[WARN] janitor: giving up on %s after %d attempts: %v", msg.Key, msg.Attempt, cause)
		metrics.Orphans.WithLabelValues("dropped").Inc()
		return
	}
	log.Printf("[WARN] janitor: %s attempt %d failed: %v", msg.Key, msg.Attempt, cause)
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.Publish(pubCtx, msg); err != nil {
		log.Printf("[ERROR] janitor: requeue %s: %v", msg.Key, err)
		metrics.Orphans.WithLabelValues("dropped").Inc()
	}
}
