// Package dispatch delivers side-effect intents after a transition commits.
//
// Delivery is best-effort and isolated from the transition: failures are
// logged and parked on a retry queue, never reported to the caller that
// requested the transition.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"inakat/lifecycle-service/internal/lifecycle"
)

// Notifier performs the actual delivery of an intent.
type Notifier interface {
	Notify(ctx context.Context, intent lifecycle.SideEffectIntent) error
}

// Deduper guarantees an intent id is delivered at most once.
type Deduper interface {
	// Claim returns false when id was already claimed.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	// Release drops a claim so a later retry may deliver it.
	Release(ctx context.Context, id uuid.UUID) error
}

// Envelope is an intent waiting for redelivery.
type Envelope struct {
	Intent    lifecycle.SideEffectIntent `json:"intent"`
	Attempts  int                        `json:"attempts"`
	LastError string                     `json:"lastError,omitempty"`
}

// RetryQueue parks failed deliveries.
type RetryQueue interface {
	Push(ctx context.Context, env Envelope) error
	// Pop returns ok=false when the queue is empty.
	Pop(ctx context.Context) (env Envelope, ok bool, err error)
	DeadLetter(ctx context.Context, env Envelope) error
	// Len reports how many envelopes wait for retry.
	Len(ctx context.Context) (int64, error)
}

// Dispatcher fans intents out to a Notifier.
type Dispatcher struct {
	notifier    Notifier
	dedup       Deduper
	queue       RetryQueue
	maxAttempts int
	concurrency int
	log         *slog.Logger

	// inflight tracks DispatchAsync deliveries.
	inflight sync.WaitGroup
}

// Config tunes a Dispatcher.
type Config struct {
	MaxAttempts int
	Concurrency int
	Logger      *slog.Logger
}

// New returns a Dispatcher. Zero config values fall back to defaults.
func New(n Notifier, d Deduper, q RetryQueue, cfg Config) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		notifier:    n,
		dedup:       d,
		queue:       q,
		maxAttempts: cfg.MaxAttempts,
		concurrency: cfg.Concurrency,
		log:         cfg.Logger,
	}
}

// Dispatch delivers every intent and returns once each has either been
// delivered, skipped as a duplicate, or parked for retry.
func (d *Dispatcher) Dispatch(ctx context.Context, intents []lifecycle.SideEffectIntent) {
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, in := range intents {
		g.Go(func() error {
			env := Envelope{Intent: in}
			if err := d.deliver(ctx, env); err != nil {
				d.park(ctx, env, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// DispatchAsync runs Dispatch in the background, detached from ctx's
// cancellation. The returned channel closes when delivery finishes; callers
// may ignore it.
func (d *Dispatcher) DispatchAsync(ctx context.Context, intents []lifecycle.SideEffectIntent) <-chan struct{} {
	done := make(chan struct{})
	if len(intents) == 0 {
		close(done)
		return done
	}
	bg := context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer close(done)
		d.Dispatch(bg, intents)
	}()
	return done
}

// Wait blocks until every DispatchAsync delivery has finished. Call it before
// closing the connections the Notifier and RetryQueue use.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// DrainRetries redelivers up to limit parked intents and reports how many
// were taken off the queue. Envelopes that fail again are parked only after
// the pass, so each sweep makes at most one attempt per intent.
func (d *Dispatcher) DrainRetries(ctx context.Context, limit int) (int, error) {
	type failure struct {
		env   Envelope
		cause error
	}
	var failed []failure
	defer func() {
		for _, f := range failed {
			d.park(ctx, f.env, f.cause)
		}
		if backlog, err := d.queue.Len(ctx); err == nil {
			d.log.Debug("retry backlog", "pending", backlog)
		}
	}()

	n := 0
	for n < limit {
		env, ok, err := d.queue.Pop(ctx)
		if err != nil {
			return n, fmt.Errorf("retry queue pop: %w", err)
		}
		if !ok {
			break
		}
		n++
		if err := d.deliver(ctx, env); err != nil {
			failed = append(failed, failure{env: env, cause: err})
		}
	}
	return n, nil
}

// deliver returns a non-nil error when the intent should be parked. An intent
// already claimed by an earlier delivery counts as delivered.
func (d *Dispatcher) deliver(ctx context.Context, env Envelope) error {
	in := env.Intent
	claimed, err := d.dedup.Claim(ctx, in.ID)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		d.log.Debug("intent already delivered", "intentId", in.ID, "kind", in.Kind)
		return nil
	}

	if err := d.notifier.Notify(ctx, in); err != nil {
		if rerr := d.dedup.Release(ctx, in.ID); rerr != nil {
			d.log.Warn("release intent claim failed", "intentId", in.ID, "err", rerr)
		}
		return err
	}
	return nil
}

func (d *Dispatcher) park(ctx context.Context, env Envelope, cause error) {
	env.Attempts++
	env.LastError = cause.Error()
	in := env.Intent

	if env.Attempts >= d.maxAttempts {
		d.log.Error("intent delivery abandoned",
			"intentId", in.ID, "kind", in.Kind, "applicationId", in.ApplicationID,
			"attempts", env.Attempts, "err", cause)
		if err := d.queue.DeadLetter(ctx, env); err != nil {
			d.log.Error("dead-letter intent failed", "intentId", in.ID, "err", err)
		}
		return
	}

	d.log.Warn("intent delivery failed, queued for retry",
		"intentId", in.ID, "kind", in.Kind, "applicationId", in.ApplicationID,
		"attempts", env.Attempts, "err", cause)
	if err := d.queue.Push(ctx, env); err != nil {
		d.log.Error("queue intent for retry failed", "intentId", in.ID, "err", err)
	}
}
