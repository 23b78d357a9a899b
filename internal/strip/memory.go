package strip

import (
	"fmt"
	"sync"
)

// Memory is an in-process strip used by tests, the selftest command, and
// development on machines without LED hardware. It records every flush so
// callers can assert on what would have reached the device.
type Memory struct {
	mu      sync.Mutex
	staged  []Color
	shown   []Color
	shows   int
	showErr error
	pixErr  error
}

// NewMemory creates a memory strip with count pixels, all black.
func NewMemory(count int) *Memory {
	return &Memory{
		staged: make([]Color, count),
		shown:  make([]Color, count),
	}
}

// SetPixel stages a color for pixel i.
func (m *Memory) SetPixel(i int, c Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pixErr != nil {
		return m.pixErr
	}
	if i < 0 || i >= len(m.staged) {
		return fmt.Errorf("%w: %d (count %d)", ErrPixelOutOfRange, i, len(m.staged))
	}
	m.staged[i] = c
	return nil
}

// Show copies the staged buffer to the visible buffer.
func (m *Memory) Show() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.showErr != nil {
		return m.showErr
	}
	copy(m.shown, m.staged)
	m.shows++
	return nil
}

// PixelCount returns the number of pixels.
func (m *Memory) PixelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.staged)
}

// Close is a no-op for the memory strip.
func (m *Memory) Close() error {
	return nil
}

// Snapshot returns a copy of the last flushed pixel buffer.
func (m *Memory) Snapshot() []Color {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Color, len(m.shown))
	copy(out, m.shown)
	return out
}

// ShowCount returns how many times Show has been called.
func (m *Memory) ShowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shows
}

// AllEqual reports whether every flushed pixel equals c.
func (m *Memory) AllEqual(c Color) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.shown {
		if p != c {
			return false
		}
	}
	return true
}

// FailShows makes subsequent Show calls return err (nil to clear).
func (m *Memory) FailShows(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showErr = err
}

// FailSetPixel makes subsequent SetPixel calls return err (nil to clear).
func (m *Memory) FailSetPixel(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pixErr = err
}
