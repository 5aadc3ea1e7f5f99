package clock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickListener receives simulated-time tick events.
type TickListener interface {
	OnTick(simTime time.Time)
}

// Sim is a speed-multiplied simulation clock. Each real tick interval
// advances simulated time by interval * speed and notifies listeners.
type Sim struct {
	speed     float64 // time multiplier, 1.0 = realtime
	interval  time.Duration
	listeners []TickListener
	simTime   time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	logger    *zap.Logger
}

// NewSim creates a simulation clock starting at the current wall time.
func NewSim(interval time.Duration, speed float64, logger *zap.Logger) *Sim {
	return &Sim{
		speed:    speed,
		interval: interval,
		simTime:  time.Now(),
		logger:   logger,
	}
}

// Now returns the current simulated time.
func (c *Sim) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.simTime
}

// AddListener registers a tick listener.
func (c *Sim) AddListener(l TickListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// SetSpeed changes the time multiplier.
func (c *Sim) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
}

// Start begins the tick loop in a background goroutine.
func (c *Sim) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop(ctx)
	c.logger.Info("sim clock started",
		zap.Duration("interval", c.interval),
		zap.Float64("speed", c.speed))
}

// Stop halts the tick loop.
func (c *Sim) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.logger.Info("sim clock stopped")
	}
}

func (c *Sim) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Sim) tick() {
	c.mu.Lock()
	c.simTime = c.simTime.Add(
		time.Duration(float64(c.interval) * c.speed),
	)
	st := c.simTime
	listeners := make([]TickListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnTick(st)
	}
}
