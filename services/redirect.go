package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// WindowHandle is a browsing context showing the gateway page. Handles for
// live sessions are remote windows kept current by frontend callbacks; tests
// substitute fakes.
type WindowHandle interface {
	// Closed reports whether the window is gone.
	Closed() bool
	// Close closes the window. Closing an already-closed window is a no-op.
	Close()
	// URL returns the gateway page the window was opened on.
	URL() string
}

// RemoteWindow is a WindowHandle driven by the portal frontend: the browser
// opens the actual popup and reports blocked/closed through callbacks.
type RemoteWindow struct {
	url string

	mu     sync.Mutex
	closed bool
}

func (w *RemoteWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *RemoteWindow) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *RemoteWindow) URL() string { return w.url }

// RedirectWindowController opens and watches gateway payment windows.
// A blocked popup is recoverable: it never fails the payment intent, the
// caller offers the raw link and a retry instead.
type RedirectWindowController struct {
	logger *zap.Logger

	// pollInterval is how often a watcher re-checks the closed state.
	pollInterval time.Duration

	mu       sync.Mutex
	watchers map[WindowHandle]chan struct{}
}

func NewRedirectWindowController(logger *zap.Logger) *RedirectWindowController {
	return &RedirectWindowController{
		logger:       logger,
		pollInterval: time.Second,
		watchers:     make(map[WindowHandle]chan struct{}),
	}
}

// Open creates a handle for the gateway page. Whether the browser actually
// managed to open the popup is only known later, through the frontend's
// blocked callback.
func (c *RedirectWindowController) Open(url string) WindowHandle {
	return &RemoteWindow{url: url}
}

// MarkBlocked records that the browser refused to open the window. There is
// no real page behind the handle, so watching it for a close is pointless;
// the watcher is released and the payment attempt continues untouched.
func (c *RedirectWindowController) MarkBlocked(handle WindowHandle) {
	if handle == nil {
		return
	}
	c.logger.Warn("Payment window blocked by browser", zap.String("url", handle.URL()))
	c.StopWatch(handle)
}

// Watch polls the handle's closed state and invokes onClosed exactly once
// when the window goes away, then stops. The watcher's ticker is released
// on StopWatch as well, so tearing down the session never leaks it.
func (c *RedirectWindowController) Watch(handle WindowHandle, onClosed func()) {
	stop := make(chan struct{})
	c.mu.Lock()
	c.watchers[handle] = stop
	c.mu.Unlock()

	var once sync.Once
	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		defer c.removeWatcher(handle)

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if handle.Closed() {
					once.Do(onClosed)
					return
				}
			}
		}
	}()
}

// StopWatch tears down the watcher for a handle without firing onClosed.
func (c *RedirectWindowController) StopWatch(handle WindowHandle) {
	c.mu.Lock()
	stop, ok := c.watchers[handle]
	if ok {
		delete(c.watchers, handle)
	}
	c.mu.Unlock()
	if ok {
		close(stop)
	}
}

// Close closes the window and releases its watcher. Idempotent.
func (c *RedirectWindowController) Close(handle WindowHandle) {
	if handle == nil {
		return
	}
	handle.Close()
	c.StopWatch(handle)
}

func (c *RedirectWindowController) removeWatcher(handle WindowHandle) {
	c.mu.Lock()
	delete(c.watchers, handle)
	c.mu.Unlock()
}
