package backlight

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nnarain/backlight/internal/strip"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// publishRecorder counts and stores callback invocations.
type publishRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *publishRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *publishRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *publishRecorder) last() (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return State{}, false
	}
	return r.states[len(r.states)-1], true
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

func newTestController(pixels int) (*Controller, *strip.Memory, *publishRecorder) {
	mem := strip.NewMemory(pixels)
	c := New(mem, testLogger())
	rec := &publishRecorder{}
	c.SetStateCallback(rec.record)
	return c, mem, rec
}

func TestCommandOrdering(t *testing.T) {
	c, mem, _ := newTestController(8)
	c.Start()
	defer c.Stop()

	red := strip.Color{R: 255}
	if err := c.SetSolidColor(red); err != nil {
		t.Fatalf("SetSolidColor: %v", err)
	}
	if err := c.SetEffect("solid"); err != nil {
		t.Fatalf("SetEffect: %v", err)
	}
	if err := c.TurnOn(); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return c.State().Power == PowerOn && mem.ShowCount() > 0 && mem.AllEqual(red)
	}, "strip never settled on solid red")
}

func TestTurnOnIdempotent(t *testing.T) {
	c, _, rec := newTestController(4)
	c.Start()
	defer c.Stop()

	if err := c.TurnOn(); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	if err := c.TurnOn(); err != nil {
		t.Fatalf("second TurnOn: %v", err)
	}

	waitFor(t, time.Second, func() bool { return c.State().Power == PowerOn }, "never turned on")

	// Give the worker time to process the duplicate.
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Errorf("published %d state changes, want 1", got)
	}
}

func TestTurnOffWhileOffIsNoop(t *testing.T) {
	c, mem, rec := newTestController(4)
	c.Start()
	defer c.Stop()

	if err := c.TurnOff(0); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 0 {
		t.Errorf("published %d state changes, want 0", got)
	}
	if got := mem.ShowCount(); got != 0 {
		t.Errorf("strip flushed %d times, want 0", got)
	}
}

func TestTurnOffInterruptsRainbow(t *testing.T) {
	c, mem, _ := newTestController(32)
	c.Start()
	defer c.Stop()

	if err := c.TurnOn(); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	waitFor(t, time.Second, func() bool { return mem.ShowCount() > 0 }, "rainbow never rendered")

	if err := c.TurnOff(time.Millisecond); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return c.State().Power == PowerOff && mem.AllEqual(strip.Black)
	}, "strip never went dark after TurnOff")
}

func TestSetEffectWhileOffDoesNotPowerOn(t *testing.T) {
	c, mem, rec := newTestController(4)
	c.Start()
	defer c.Stop()

	if err := c.SetEffect("solid"); err != nil {
		t.Fatalf("SetEffect: %v", err)
	}

	waitFor(t, time.Second, func() bool { return c.State().Effect == EffectSolid }, "effect never recorded")

	if got := c.State().Power; got != PowerOff {
		t.Errorf("power = %v after SetEffect while off, want OFF", got)
	}
	if got := mem.ShowCount(); got != 0 {
		t.Errorf("strip flushed %d times while off, want 0", got)
	}
	if last, ok := rec.last(); !ok || last.Effect != EffectSolid {
		t.Errorf("last published state = %+v, want effect recorded", last)
	}
}

func TestSetEffectRejectsUnknownName(t *testing.T) {
	c, _, rec := newTestController(4)
	c.Start()
	defer c.Stop()

	if err := c.SetEffect("strobe"); err == nil {
		t.Fatal("SetEffect(strobe) succeeded, want error")
	}

	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 0 {
		t.Errorf("published %d state changes after rejected effect, want 0", got)
	}

	// Worker must still be alive and accepting valid commands.
	if err := c.SetEffect("solid"); err != nil {
		t.Fatalf("SetEffect(solid) after rejection: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State().Effect == EffectSolid }, "worker stopped accepting commands")
}

func TestStatePayloadRoundTrip(t *testing.T) {
	c, mem, _ := newTestController(4)
	c.Start()
	defer c.Stop()

	col := strip.Color{R: 10, G: 20, B: 30}
	if err := c.SetSolidColor(col); err != nil {
		t.Fatalf("SetSolidColor: %v", err)
	}
	if err := c.SetEffect("solid"); err != nil {
		t.Fatalf("SetEffect: %v", err)
	}
	if err := c.TurnOn(); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return c.State().Power == PowerOn && mem.AllEqual(col)
	}, "strip never settled")

	p := c.State().Payload()
	if p.State != "ON" || p.Effect != "solid" {
		t.Errorf("payload = %+v, want state ON effect solid", p)
	}
	if p.Color == nil || *p.Color != col {
		t.Errorf("payload color = %v, want %+v", p.Color, col)
	}

	off := c.State()
	off.Power = PowerOff
	if p := off.Payload(); p.Effect != "" || p.Color != nil {
		t.Errorf("off payload = %+v, want effect and color omitted", p)
	}
}

func TestClearDoesNotChangeStateOrPublish(t *testing.T) {
	c, mem, rec := newTestController(4)
	c.Start()
	defer c.Stop()

	if err := c.Clear(0); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	waitFor(t, time.Second, func() bool { return mem.ShowCount() > 0 }, "clear never flushed")

	if got := rec.count(); got != 0 {
		t.Errorf("published %d state changes after clear, want 0", got)
	}
	if got := c.State().Power; got != PowerOff {
		t.Errorf("power = %v after clear, want OFF", got)
	}
	if !mem.AllEqual(strip.Black) {
		t.Error("strip not black after clear")
	}
}

func TestRenderErrorDoesNotKillWorker(t *testing.T) {
	c, mem, _ := newTestController(4)
	c.Start()
	defer c.Stop()

	if err := c.TurnOn(); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	waitFor(t, time.Second, func() bool { return mem.ShowCount() > 0 }, "never rendered")

	mem.FailShows(errors.New("dma transfer failed"))
	time.Sleep(80 * time.Millisecond)
	mem.FailShows(nil)

	before := mem.ShowCount()
	waitFor(t, time.Second, func() bool { return mem.ShowCount() > before }, "rendering never recovered")

	if got := c.State().Power; got != PowerOn {
		t.Errorf("power = %v after render errors, want ON", got)
	}
}

func TestStopReturnsPromptly(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(c *Controller)
	}{
		{"immediately after start", func(c *Controller) {}},
		{"while animating", func(c *Controller) {
			c.TurnOn()
			time.Sleep(30 * time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestController(16)
			c.Start()
			tt.prepare(c)

			done := make(chan struct{})
			go func() {
				c.Stop()
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Stop did not return")
			}
		})
	}
}

func TestStopWithoutStart(t *testing.T) {
	c, _, _ := newTestController(4)
	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop without Start did not return")
	}
}

func TestQueueFullReturnsError(t *testing.T) {
	// Worker not started, so nothing drains the queue.
	c, _, _ := newTestController(4)

	for i := 0; i < queueSize; i++ {
		if err := c.TurnOn(); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := c.TurnOn(); !errors.Is(err, ErrQueueFull) {
		t.Errorf("overflow enqueue returned %v, want ErrQueueFull", err)
	}
}
