package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWindowController_MarkBlockedReleasesWatcher(t *testing.T) {
	c := NewRedirectWindowController(zap.NewNop())
	c.pollInterval = 5 * time.Millisecond

	handle := c.Open("https://gateway.example/pay")

	var closedCalls atomic.Int32
	c.Watch(handle, func() { closedCalls.Add(1) })
	c.MarkBlocked(handle)

	// The popup never existed; a later close must not look like the tenant
	// finishing with the gateway page.
	handle.Close()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), closedCalls.Load())

	c.MarkBlocked(nil)
}

func TestWindowController_WatchFiresOnceOnClose(t *testing.T) {
	c := NewRedirectWindowController(zap.NewNop())
	c.pollInterval = 5 * time.Millisecond

	handle := c.Open("https://gateway.example/pay")

	var closedCalls atomic.Int32
	c.Watch(handle, func() { closedCalls.Add(1) })

	handle.Close()
	assert.Eventually(t, func() bool { return closedCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The watcher stopped; further closes change nothing.
	handle.Close()
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, int32(1), closedCalls.Load())
}

func TestWindowController_StopWatchWithoutClose(t *testing.T) {
	c := NewRedirectWindowController(zap.NewNop())
	c.pollInterval = 5 * time.Millisecond

	handle := c.Open("https://gateway.example/pay")

	var closedCalls atomic.Int32
	c.Watch(handle, func() { closedCalls.Add(1) })
	c.StopWatch(handle)

	handle.Close()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), closedCalls.Load(), "stopped watcher must not fire")
}

func TestWindowController_CloseIsIdempotent(t *testing.T) {
	c := NewRedirectWindowController(zap.NewNop())

	handle := c.Open("https://gateway.example/pay")

	c.Close(handle)
	c.Close(handle)
	c.Close(nil)
	assert.True(t, handle.Closed())
}
