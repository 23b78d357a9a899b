package backlight

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nnarain/backlight/internal/strip"
)

const (
	// DefaultFade is the per-pixel wipe delay used when powering off
	// without an explicit fade.
	DefaultFade = 50 * time.Millisecond

	// frameInterval paces the rainbow and solid effects. It controls the
	// perceived animation speed, not just CPU usage.
	frameInterval = 20 * time.Millisecond

	queueSize = 64
)

// ErrQueueFull is returned when a command cannot be enqueued. The command
// is dropped; the caller decides whether to report or retry.
var ErrQueueFull = errors.New("command queue is full")

// StateCallback receives the full state snapshot after every observable
// change. It runs synchronously on the worker goroutine, so a slow
// callback stalls rendering.
type StateCallback func(State)

// Controller owns exclusive access to a strip. Transports enqueue commands
// from any goroutine; a single worker goroutine drains the queue, mutates
// state, and renders the active effect while staying responsive to new
// commands mid-render.
type Controller struct {
	strip  strip.Strip
	logger *slog.Logger

	cmds chan command

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Worker-private fields, never touched by callers.
	cur     State
	pending *command
	phase   uint8

	mu       sync.Mutex
	callback StateCallback
	snapshot State
	started  bool
	stopped  bool
}

// New creates a controller for the given strip. The initial state is OFF
// with the rainbow effect selected and a white solid color.
func New(s strip.Strip, logger *slog.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		strip:  s,
		logger: logger,
		cmds:   make(chan command, queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		cur: State{
			Power:  PowerOff,
			Effect: EffectRainbow,
			Color:  strip.Color{R: 255, G: 255, B: 255},
		},
	}
	c.snapshot = c.cur
	return c
}

// Start launches the animation worker. Safe to call once.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	go c.run()
}

// Stop fades the strip out, ends the worker, and waits for it to exit.
// Always returns, even when called immediately after Start.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	// TurnOff then Shutdown, mirroring the external stop contract. If the
	// queue is saturated fall back to cancellation so Stop cannot hang.
	if err := c.post(command{kind: cmdTurnOff}); err != nil {
		c.cancel()
	}
	if err := c.post(command{kind: cmdShutdown}); err != nil {
		c.cancel()
	}
	<-c.done
	c.cancel()

	if err := c.strip.Close(); err != nil {
		c.logger.Warn("Failed to close strip", "error", err)
	}
}

// TurnOn enables rendering with the last selected effect.
func (c *Controller) TurnOn() error {
	return c.post(command{kind: cmdTurnOn})
}

// TurnOff wipes the strip to black (fade is the per-pixel delay) and
// disables rendering.
func (c *Controller) TurnOff(fade time.Duration) error {
	return c.post(command{kind: cmdTurnOff, fade: fade})
}

// Clear wipes the strip to black without changing power or effect state.
func (c *Controller) Clear(fade time.Duration) error {
	return c.post(command{kind: cmdClear, fade: fade})
}

// SetEffect selects the animation by name ("rainbow" or "solid"). The
// selection takes effect immediately when on; when off it is remembered
// for the next TurnOn without powering up.
func (c *Controller) SetEffect(name string) error {
	effect, err := ParseEffect(name)
	if err != nil {
		return err
	}
	return c.post(command{kind: cmdSetEffect, effect: effect})
}

// SetSolidColor stores the color used by the solid effect.
func (c *Controller) SetSolidColor(col strip.Color) error {
	return c.post(command{kind: cmdSetColor, color: col})
}

// SetStateCallback registers the single state publisher hook. Register
// before Start to observe every transition.
func (c *Controller) SetStateCallback(fn StateCallback) {
	c.mu.Lock()
	c.callback = fn
	c.mu.Unlock()
}

// State returns a copy of the last published state snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// post enqueues without blocking. A full queue drops the command.
func (c *Controller) post(cmd command) error {
	select {
	case c.cmds <- cmd:
		commandsTotal.WithLabelValues(cmd.kind.String()).Inc()
		return nil
	default:
		commandsDropped.Inc()
		c.logger.Warn("Command queue full, dropping command", "command", cmd.kind.String())
		return ErrQueueFull
	}
}

// run is the worker loop: drain commands first, then render one frame
// step of the active effect.
func (c *Controller) run() {
	defer close(c.done)
	c.logger.Info("Animation worker started", "pixels", c.strip.PixelCount())

	for {
		cmd, ok := c.next()
		if ok {
			if c.apply(cmd) {
				c.logger.Info("Animation worker exiting")
				return
			}
			continue
		}
		if c.ctx.Err() != nil {
			return
		}
		if c.cur.Power == PowerOn {
			c.renderStep()
		}
	}
}

// next returns the next command. While on it never blocks (rendering
// provides pacing); while off it blocks until a command arrives or the
// controller is cancelled.
func (c *Controller) next() (command, bool) {
	if c.pending != nil {
		cmd := *c.pending
		c.pending = nil
		return cmd, true
	}

	if c.cur.Power == PowerOn {
		select {
		case cmd := <-c.cmds:
			return cmd, true
		default:
			return command{}, false
		}
	}

	select {
	case cmd := <-c.cmds:
		return cmd, true
	case <-c.ctx.Done():
		return command{}, false
	}
}

// apply executes one command to completion. Returns true on shutdown.
// State-affecting transitions publish only when something changed, so
// repeated TurnOn/SetEffect/SetColor commands produce no duplicate
// publishes.
func (c *Controller) apply(cmd command) bool {
	c.logger.Debug("Applying command", "command", cmd.kind.String())

	switch cmd.kind {
	case cmdTurnOn:
		if c.cur.Power == PowerOn {
			return false
		}
		c.cur.Power = PowerOn
		c.publish()
	case cmdTurnOff:
		if c.cur.Power == PowerOff {
			return false
		}
		c.wipe(strip.Black, cmd.fade)
		c.cur.Power = PowerOff
		c.publish()
	case cmdSetEffect:
		if c.cur.Effect == cmd.effect {
			return false
		}
		c.cur.Effect = cmd.effect
		c.publish()
	case cmdSetColor:
		if c.cur.Color == cmd.color {
			return false
		}
		c.cur.Color = cmd.color
		c.publish()
	case cmdClear:
		c.wipe(strip.Black, cmd.fade)
	case cmdShutdown:
		return true
	}
	return false
}

// publish stores the snapshot and invokes the state callback.
func (c *Controller) publish() {
	c.mu.Lock()
	c.snapshot = c.cur
	cb := c.callback
	c.mu.Unlock()

	if cb != nil {
		cb(c.cur)
	}
}

func (c *Controller) renderStep() {
	switch c.cur.Effect {
	case EffectSolid:
		c.renderSolid()
	default:
		c.renderRainbow()
	}
}

// renderRainbow draws one phase step of the hue ramp across all pixels.
// The phase wraps every 256 steps. A queued command abandons the frame
// between pixel writes.
func (c *Controller) renderRainbow() {
	count := c.strip.PixelCount()
	for i := 0; i < count; i++ {
		if c.interrupted() {
			return
		}
		if err := c.strip.SetPixel(i, Wheel(rainbowHue(i, count, c.phase))); err != nil {
			c.abandonFrame(err)
			return
		}
	}
	if err := c.strip.Show(); err != nil {
		c.abandonFrame(err)
		return
	}
	framesRendered.WithLabelValues(string(EffectRainbow)).Inc()
	c.phase++
	c.pace(frameInterval)
}

// renderSolid paints the stored color and flushes once.
func (c *Controller) renderSolid() {
	count := c.strip.PixelCount()
	for i := 0; i < count; i++ {
		if c.interrupted() {
			return
		}
		if err := c.strip.SetPixel(i, c.cur.Color); err != nil {
			c.abandonFrame(err)
			return
		}
	}
	if err := c.strip.Show(); err != nil {
		c.abandonFrame(err)
		return
	}
	framesRendered.WithLabelValues(string(EffectSolid)).Inc()
	c.pace(frameInterval)
}

// wipe paints every pixel one at a time with a per-pixel flush and delay.
// Interruption (queued command, shutdown) cancels the remaining delays but
// never the wipe itself: the strip always ends fully painted.
func (c *Controller) wipe(col strip.Color, delay time.Duration) {
	count := c.strip.PixelCount()
	rush := delay <= 0
	for i := 0; i < count; i++ {
		if err := c.strip.SetPixel(i, col); err != nil {
			c.abandonFrame(err)
			return
		}
		if rush {
			continue
		}
		if err := c.strip.Show(); err != nil {
			c.abandonFrame(err)
			return
		}
		if !c.pace(delay) {
			rush = true
		}
	}
	if err := c.strip.Show(); err != nil {
		c.abandonFrame(err)
	}
}

// abandonFrame drops the current frame after a strip I/O error and paces
// before the next command check so a persistent failure cannot spin hot.
func (c *Controller) abandonFrame(err error) {
	renderErrors.Inc()
	c.logger.Error("Strip I/O failed, abandoning frame", "error", err)
	c.pace(frameInterval)
}

// pace waits out one animation delay while staying responsive: a command
// arriving during the wait is stashed for the next dequeue and the wait
// ends early. Reports whether the full delay elapsed.
func (c *Controller) pace(d time.Duration) bool {
	if c.interrupted() {
		return false
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case cmd := <-c.cmds:
		c.pending = &cmd
		return false
	case <-c.ctx.Done():
		return false
	}
}

// interrupted reports whether the worker should return to the command
// check point instead of continuing the current render.
func (c *Controller) interrupted() bool {
	return c.ctx.Err() != nil || c.pending != nil || len(c.cmds) > 0
}
