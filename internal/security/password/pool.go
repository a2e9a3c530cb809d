package password

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

// ErrPoolBusy is returned when a hash job cannot be scheduled before the
// caller's context is done. Callers treat it as an internal failure.
var ErrPoolBusy = errors.New("password: hash pool busy")

// Pool bounds the number of concurrent Argon2id computations so that
// CPU-bound hashing cannot starve the goroutines serving request I/O.
//
// Each job runs on its own goroutine; the semaphore is the bound. The caller
// blocks until the job completes or its context is done. A job whose caller
// went away still runs to completion and releases its slot.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool allowing at most workers concurrent computations.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

func (p *Pool) run(ctx context.Context, job func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return ErrPoolBusy
	}

	done := make(chan struct{})
	go func() {
		defer p.sem.Release(1)
		defer close(done)
		job()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hash computes h.Hash on the pool.
func (p *Pool) Hash(ctx context.Context, h *Hasher, plaintext string) (string, error) {
	var (
		encoded string
		err     error
	)
	if rerr := p.run(ctx, func() { encoded, err = h.Hash(plaintext) }); rerr != nil {
		return "", rerr
	}
	return encoded, err
}

// Verify computes h.Verify on the pool.
func (p *Pool) Verify(ctx context.Context, h *Hasher, plaintext, encoded string) (bool, error) {
	var ok bool
	if rerr := p.run(ctx, func() { ok = h.Verify(plaintext, encoded) }); rerr != nil {
		return false, rerr
	}
	return ok, nil
}

// VerifyDummy burns a hash computation on the pool. Used for unknown
// usernames so the response cost matches a real verification.
func (p *Pool) VerifyDummy(ctx context.Context, h *Hasher, plaintext string) error {
	return p.run(ctx, func() { h.VerifyDummy(plaintext) })
}
