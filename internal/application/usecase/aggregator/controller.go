package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Cycler runs one fan-out cycle; *Orchestrator is the production implementation.
type Cycler interface {
	RunCycle(ctx context.Context, emit func(Event)) bool
}

// scope is one activation's cancellation scope. Scopes are never reused.
type scope struct {
	id     string
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Controller owns the cancellation scope and the periodic schedule.
type Controller struct {
	cycler   Cycler
	store    *Store
	interval time.Duration

	mu    sync.Mutex
	gen   uint64
	cur   *scope
	tasks sync.WaitGroup
}

// NewController uses RefreshInterval when interval <= 0.
func NewController(c Cycler, store *Store, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = RefreshInterval
	}
	return &Controller{cycler: c, store: store, interval: interval}
}

// Activate creates a fresh scope, resets the store, starts the first cycle
// immediately and arms the ticker. It is a no-op when already active.
func (c *Controller) Activate(parent context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil {
		return false
	}

	c.gen++
	ctx, cancel := context.WithCancel(parent)
	sc := &scope{id: uuid.NewString(), gen: c.gen, ctx: ctx, cancel: cancel}
	c.cur = sc
	c.store.Dispatch(Reset{})

	c.tasks.Add(1)
	go c.loop(sc)

	log.Info().Str("scope", sc.id).Uint64("gen", sc.gen).Dur("interval", c.interval).Msg("aggregator activated")
	return true
}

// Deactivate cancels in-flight work and stops the schedule. Safe to call
// repeatedly or before Activate.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc := c.cur
	if sc == nil {
		return
	}
	c.cur = nil
	sc.cancel()

	log.Info().Str("scope", sc.id).Uint64("gen", sc.gen).Msg("aggregator deactivated")
}

// ManualRefresh triggers one extra cycle without touching the ticker.
func (c *Controller) ManualRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur == nil {
		return false
	}
	c.spawnLocked(c.cur)
	return true
}

// Active 是否处于激活状态
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil
}

// Wait blocks until the loop and every spawned cycle have returned.
func (c *Controller) Wait() {
	c.tasks.Wait()
}

func (c *Controller) loop(sc *scope) {
	defer c.tasks.Done()

	c.mu.Lock()
	if c.isCurrentLocked(sc) {
		c.spawnLocked(sc)
	}
	c.mu.Unlock()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sc.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.isCurrentLocked(sc) {
				c.spawnLocked(sc)
			}
			c.mu.Unlock()
		}
	}
}

func (c *Controller) spawnLocked(sc *scope) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		start := time.Now()
		if c.cycler.RunCycle(sc.ctx, func(ev Event) { c.emit(sc, ev) }) {
			log.Debug().Str("scope", sc.id).Dur("took", time.Since(start)).Msg("cycle complete")
		}
	}()
}

// emit forwards ev only while sc is still the current, live scope. The check
// and the dispatch happen under the controller lock so nothing from a scope
// lands after Deactivate has returned.
func (c *Controller) emit(sc *scope, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(sc) {
		log.Debug().Str("scope", sc.id).Uint64("gen", sc.gen).Msg("dropping event from stale scope")
		return
	}
	c.store.Dispatch(ev)
}

func (c *Controller) isCurrentLocked(sc *scope) bool {
	return c.cur != nil && c.cur.gen == sc.gen && sc.ctx.Err() == nil
}
