package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// sigChan is buffered to avoid missing signals delivered while no receiver is ready.
var sigChan = make(chan os.Signal, 1)

// Handler is a function called when a signal is received.
type Handler func()

// HandlerID is a unique identifier returned by registration functions,
// used to deregister individual handlers.
type HandlerID int

type kind int

const (
	reload kind = iota
	interrupt
)

func (k kind) String() string {
	if k == reload {
		return "reload"
	}
	return "interrupt"
}

type registeredHandler struct {
	id HandlerID
	fn Handler
}

var (
	mu       sync.RWMutex
	handlers = map[kind][]registeredHandler{}
	nextID   HandlerID
	stopOnce sync.Once
)

func register(k kind, f Handler) HandlerID {
	if f == nil {
		return -1
	}
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handlers[k] = append(handlers[k], registeredHandler{id: id, fn: f})
	return id
}

func deregister(k kind, id HandlerID) {
	mu.Lock()
	defer mu.Unlock()
	hs := handlers[k]
	for i, h := range hs {
		if h.id == id {
			handlers[k] = append(hs[:i], hs[i+1:]...)
			return
		}
	}
}

// run calls every handler of kind k in registration order. A panicking
// handler is logged and does not stop the rest.
func run(k kind) {
	mu.RLock()
	snapshot := append([]registeredHandler(nil), handlers[k]...)
	mu.RUnlock()

	for _, h := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(logger.Fields{
						"at":      "signals.run",
						"kind":    k.String(),
						"handler": int(h.id),
						"panic":   r,
					}).Error("signal handler panicked")
				}
			}()
			h.fn()
		}()
	}
}

// RegisterReloadHandler registers a handler called on SIGHUP (config reload).
// Nil handlers are ignored and return -1.
func RegisterReloadHandler(f Handler) HandlerID {
	return register(reload, f)
}

func DeregisterReloadHandler(id HandlerID) {
	deregister(reload, id)
}

// RegisterInterruptHandler registers a handler called on SIGINT/SIGTERM.
// Nil handlers are ignored and return -1.
func RegisterInterruptHandler(f Handler) HandlerID {
	return register(interrupt, f)
}

func DeregisterInterruptHandler(id HandlerID) {
	deregister(interrupt, id)
}

func handleReload() {
	run(reload)
}

func handleInterrupted() {
	run(interrupt)
}

// WithInterrupt returns a context that is cancelled on the first interrupt
// signal. The returned stop function deregisters the handler and cancels.
func WithInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	id := RegisterInterruptHandler(func() {
		log.WithField("at", "signals.WithInterrupt").Info("interrupt received, cancelling")
		cancel()
	})
	return ctx, func() {
		DeregisterInterruptHandler(id)
		cancel()
	}
}

// StopHandle closes the signal channel, causing Handle() to return.
// Safe to call multiple times; only the first call takes effect.
func StopHandle() {
	stopOnce.Do(func() {
		signal.Stop(sigChan)
		close(sigChan)
	})
}
