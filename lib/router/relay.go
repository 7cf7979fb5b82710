package router

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/logger"
	"github.com/go-i2p/tunnelpipe/lib/tunnel"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var log = logger.GetGoI2PLogger()

var (
	// ErrRelayClosed is returned by Submit after Close.
	ErrRelayClosed = errors.New("relay is closed")
	// ErrRelayRunning is returned when Run is called twice.
	ErrRelayRunning = errors.New("relay is already running")
	// ErrInvalidOptions is returned for unusable relay options.
	ErrInvalidOptions = errors.New("invalid relay options")
)

// Options tunes a Relay.
type Options struct {
	WorkersPerStage   int
	QueueDepth        int
	MessagesPerSecond float64
	Burst             int
	// ReplayWindow is how long each stage remembers the IVs it has seen.
	// Zero selects DefaultReplayWindow.
	ReplayWindow time.Duration
	// NewIVValidator, when set, replaces the IVFilter of each stage.
	NewIVValidator func(stage int) IVValidator
}

// DefaultOptions returns the same values as config.Defaults().Relay.
func DefaultOptions() Options {
	return Options{
		WorkersPerStage:   4,
		QueueDepth:        64,
		MessagesPerSecond: 500,
		Burst:             50,
		ReplayWindow:      DefaultReplayWindow,
	}
}

func (o Options) validate() error {
	if o.WorkersPerStage <= 0 || o.QueueDepth <= 0 || o.MessagesPerSecond <= 0 || o.Burst <= 0 || o.ReplayWindow < 0 {
		return oops.Wrapf(ErrInvalidOptions, "workers=%d queue=%d rate=%v burst=%d replay=%s",
			o.WorkersPerStage, o.QueueDepth, o.MessagesPerSecond, o.Burst, o.ReplayWindow)
	}
	return nil
}

// Hop is one stage of a relay: the processor and the identity of the router
// running it. The identity is what the next stage sees as the sender.
type Hop struct {
	Peer  common.Hash
	Stage tunnel.Stage
}

// envelope is a message in flight with the sender it claims.
type envelope struct {
	msg  []byte
	from common.Hash
}

// Relay moves messages through a chain of tunnel stages.
type Relay struct {
	hops      []Hop
	queues    []chan envelope
	delivered chan []byte
	limiter   *rate.Limiter
	workers   int
	stats     []stageCounters
	ivs       []IVValidator

	done    chan struct{}
	closed  atomic.Bool
	running atomic.Bool
}

// NewRelay creates a relay over hops, gateway first.
func NewRelay(hops []Hop, opts Options) (*Relay, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(hops) == 0 {
		return nil, oops.Wrapf(ErrInvalidOptions, "relay needs at least one stage")
	}
	for i, h := range hops {
		if h.Stage == nil {
			return nil, oops.Wrapf(ErrInvalidOptions, "stage %d has no processor", i)
		}
	}

	r := &Relay{
		hops:      append([]Hop(nil), hops...),
		queues:    make([]chan envelope, len(hops)),
		delivered: make(chan []byte, opts.QueueDepth),
		limiter:   rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.Burst),
		workers:   opts.WorkersPerStage,
		stats:     make([]stageCounters, len(hops)),
		ivs:       make([]IVValidator, len(hops)),
		done:      make(chan struct{}),
	}
	window := opts.ReplayWindow
	if window == 0 {
		window = DefaultReplayWindow
	}
	for i := range r.queues {
		r.queues[i] = make(chan envelope, opts.QueueDepth)
		if opts.NewIVValidator != nil {
			r.ivs[i] = opts.NewIVValidator(i)
		}
		if r.ivs[i] == nil {
			r.ivs[i] = NewIVFilter(window)
		}
	}

	log.WithFields(logger.Fields{
		"at":      "NewRelay",
		"stages":  len(hops),
		"workers": opts.WorkersPerStage,
		"queue":   opts.QueueDepth,
		"rate":    opts.MessagesPerSecond,
		"replay":  window.String(),
	}).Debug("created relay")
	return r, nil
}

// NewRelayForTunnel builds every stage of cfg and wires them into a relay.
// Only the tunnel creator can do this, since it needs every hop's keys.
func NewRelayForTunnel(cfg *tunnel.TunnelConfig, clock tunnel.Clock, opts Options) (*Relay, error) {
	if cfg == nil {
		return nil, tunnel.ErrNilTunnelConfig
	}
	stages, err := cfg.Stages(clock)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to build tunnel stages")
	}
	hops := make([]Hop, len(stages))
	for i, s := range stages {
		hops[i] = Hop{Peer: cfg.Hop(i).Peer(), Stage: s}
	}
	return NewRelay(hops, opts)
}

// Delivered carries payloads recovered by the endpoint. It is never closed;
// select on it together with the Run context.
func (r *Relay) Delivered() <-chan []byte {
	return r.delivered
}

// Submit paces msg through the ingress limiter and queues it at the gateway.
// The gateway does not check its predecessor, so no sender is claimed.
func (r *Relay) Submit(ctx context.Context, msg []byte) error {
	if r.closed.Load() {
		return ErrRelayClosed
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return oops.Wrapf(err, "ingress limiter")
	}
	return r.enqueue(ctx, 0, envelope{msg: msg})
}

// SubmitAt queues msg directly at stage, claiming it came from from. This is
// how a message arrives from a link rather than from the local gateway, and
// is not paced.
func (r *Relay) SubmitAt(ctx context.Context, stage int, msg []byte, from common.Hash) error {
	if stage < 0 || stage >= len(r.hops) {
		return oops.Errorf("stage %d out of range [0,%d)", stage, len(r.hops))
	}
	if r.closed.Load() {
		return ErrRelayClosed
	}
	return r.enqueue(ctx, stage, envelope{msg: msg, from: from})
}

func (r *Relay) enqueue(ctx context.Context, stage int, env envelope) error {
	select {
	case r.queues[stage] <- env:
		return nil
	case <-r.done:
		return ErrRelayClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is cancelled or Close is
// called. Messages still queued at that point are abandoned.
func (r *Relay) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRelayRunning
	}
	defer r.running.Store(false)

	g, gctx := errgroup.WithContext(ctx)
	for stage := range r.hops {
		for w := 0; w < r.workers; w++ {
			g.Go(func() error {
				r.work(gctx, stage)
				return nil
			})
		}
	}

	log.WithFields(logger.Fields{
		"at":      "(Relay) Run",
		"stages":  len(r.hops),
		"workers": r.workers,
	}).Info("relay started")

	err := g.Wait()
	log.WithField("at", "(Relay) Run").Info("relay stopped")
	return err
}

// work is one worker of one stage.
func (r *Relay) work(ctx context.Context, stage int) {
	in := r.queues[stage]
	hop := r.hops[stage]
	last := stage == len(r.hops)-1
	counters := &r.stats[stage]
	ivs := r.ivs[stage]

	for {
		var env envelope
		select {
		case env = <-in:
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}

		// Short messages go to Process, which rejects them by length.
		if len(env.msg) >= tunnel.IVLength && !ivs.ReceiveIV(env.msg[:tunnel.IVLength]) {
			counters.replayed.Add(1)
			counters.dropped.Add(1)
			log.WithFields(logger.Fields{
				"at":    "(Relay) work",
				"stage": stage,
			}).Warn("dropping replayed tunnel message")
			continue
		}
		if !hop.Stage.Process(env.msg, 0, len(env.msg), env.from) {
			counters.dropped.Add(1)
			continue
		}
		counters.processed.Add(1)

		if last {
			r.deliver(ctx, tunnel.PayloadOf(env.msg))
			continue
		}
		if err := r.enqueue(ctx, stage+1, envelope{msg: env.msg, from: hop.Peer}); err != nil {
			return
		}
	}
}

// deliver counts before the send so a consumer that has received a payload
// always sees it in Stats. The count is undone when the send is abandoned.
func (r *Relay) deliver(ctx context.Context, payload []byte) {
	counter := &r.stats[len(r.stats)-1].delivered
	counter.Add(1)
	select {
	case r.delivered <- payload:
	case <-r.done:
		counter.Add(^uint64(0))
	case <-ctx.Done():
		counter.Add(^uint64(0))
	}
}

// Close stops the workers and makes further submits fail. It is safe to
// call more than once.
func (r *Relay) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		close(r.done)
		log.WithField("at", "(Relay) Close").Debug("relay closed")
	}
	return nil
}

// Stages returns the number of hops the relay drives.
func (r *Relay) Stages() int {
	return len(r.hops)
}
