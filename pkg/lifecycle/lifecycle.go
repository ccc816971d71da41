// Package lifecycle coordinates startup, readiness and shutdown hooks
// across the service's systems.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when shutdown hooks outlive the deadline.
var ErrShutdownTimeout = errors.New("shutdown timeout")

// Coordinator runs startup hooks, flips to ready once they finish, and
// cancels its context on shutdown. Ready and shutdown hooks share one
// wait group, so Shutdown waits for both.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	starting sync.WaitGroup
	running  sync.WaitGroup

	mu      sync.RWMutex
	ready   bool
	pending []func()
}

func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Context is cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn now; WaitForStartup blocks until it returns.
func (c *Coordinator) OnStartup(fn func()) {
	c.starting.Go(fn)
}

// OnReady defers fn until startup completes, or runs it immediately if
// the coordinator is already ready. Long-running hooks must watch Context.
func (c *Coordinator) OnReady(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		c.pending = append(c.pending, fn)
		return
	}
	c.running.Go(fn)
}

// OnShutdown runs fn now. Hooks block on Context().Done() before cleaning up.
func (c *Coordinator) OnShutdown(fn func()) {
	c.running.Go(fn)
}

func (c *Coordinator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// WaitForStartup waits for every startup hook, marks the coordinator
// ready and releases queued ready hooks. Repeat calls only wait.
func (c *Coordinator) WaitForStartup() {
	c.starting.Wait()

	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return
	}
	c.ready = true
	hooks := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		c.running.Go(fn)
	}
}

// Shutdown cancels Context and waits up to timeout for shutdown and
// ready hooks to return.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, timeout)
	}
}
