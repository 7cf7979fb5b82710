package main

import (
	"context"
	"fmt"
	"io"
	"time"

	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/go-i2p/tunnelpipe/lib/config"
	"github.com/go-i2p/tunnelpipe/lib/i2np"
	"github.com/go-i2p/tunnelpipe/lib/router"
	"github.com/go-i2p/tunnelpipe/lib/tunnel"
	"github.com/go-i2p/tunnelpipe/lib/util"
	"github.com/go-i2p/tunnelpipe/lib/util/time/monotonic"
	"github.com/go-i2p/tunnelpipe/lib/util/time/sntp"
	"github.com/samber/oops"
)

// summary reports one simulation run.
type summary struct {
	Hops        int
	Direction   tunnel.Direction
	PayloadSize int
	Sent        int
	Delivered   int
	Mismatched  int
	Stages      []router.StageStats
	Elapsed     time.Duration
}

func (s *summary) Print(w io.Writer) {
	fmt.Fprintf(w, "tunnel: %d hops, %s, %d byte payloads\n", s.Hops, s.Direction, s.PayloadSize)
	fmt.Fprintf(w, "sent %d, delivered %d, mismatched %d in %s\n", s.Sent, s.Delivered, s.Mismatched, s.Elapsed.Round(time.Millisecond))
	for _, st := range s.Stages {
		fmt.Fprintf(w, "  stage %d: processed %d, dropped %d\n", st.Stage, st.Processed, st.Dropped)
	}
}

// runSimulation builds a tunnel from cfg, distributes its build records,
// relays messages through it and checks every payload.
func runSimulation(ctx context.Context, cfg config.ConfigDefaults, messages int) (*summary, error) {
	clock := monotonic.NewClock()
	if cfg.Clock.SyncEnabled {
		cs := sntp.NewClockSync(nil, clock, cfg.Clock.Servers, cfg.Clock.Timeout)
		if _, err := cs.Sync(ctx); err != nil {
			log.WithError(err).Warn("clock sync failed, using system clock")
		}
	}

	direction, err := tunnel.ParseDirection(cfg.Tunnel.Direction)
	if err != nil {
		return nil, err
	}
	peers, err := randomPeers(cfg.Tunnel.HopCount)
	if err != nil {
		return nil, err
	}

	tcfg, err := tunnel.NewBuilder().Build(tunnel.BuildRequest{
		Peers:     peers,
		Direction: direction,
		Lifetime:  cfg.Tunnel.Lifetime,
		Now:       clock.Now(),
	})
	if err != nil {
		return nil, oops.Wrapf(err, "failed to build tunnel")
	}

	hops, err := relayHops(tcfg, clock)
	if err != nil {
		return nil, err
	}
	relay, err := router.NewRelay(hops, router.Options{
		WorkersPerStage:   cfg.Relay.WorkersPerStage,
		QueueDepth:        cfg.Relay.QueueDepth,
		MessagesPerSecond: cfg.Relay.MessagesPerSecond,
		Burst:             cfg.Relay.Burst,
		ReplayWindow:      cfg.Relay.ReplayWindow,
	})
	if err != nil {
		return nil, err
	}
	util.RegisterCloser(relay)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- relay.Run(ctx) }()

	s := &summary{Hops: tcfg.Length(), Direction: direction, PayloadSize: cfg.Tunnel.PayloadSize}
	start := time.Now()
	err = exchange(ctx, tcfg, relay, cfg.Tunnel.PayloadSize, messages, s)
	s.Elapsed = time.Since(start)
	s.Stages = relay.Stats()

	cancel()
	if rerr := <-runErr; rerr != nil && err == nil {
		err = rerr
	}
	if err == nil && (s.Mismatched > 0 || s.Delivered != s.Sent) {
		err = oops.Errorf("%d of %d payloads delivered, %d mismatched", s.Delivered, s.Sent, s.Mismatched)
	}

	log.WithFields(logger.Fields{
		"at":         "runSimulation",
		"sent":       s.Sent,
		"delivered":  s.Delivered,
		"mismatched": s.Mismatched,
		"dropped":    relay.TotalDropped(),
	}).Info("simulation finished")
	return s, err
}

// exchange submits messages and matches every delivered payload against the
// ones still outstanding. Workers reorder messages, so matching is by content.
func exchange(ctx context.Context, tcfg *tunnel.TunnelConfig, relay *router.Relay, payloadSize, messages int, s *summary) error {
	outstanding := make(map[string]int, messages)
	submitErr := make(chan error, 1)

	payloads := make([][]byte, messages)
	for i := range payloads {
		payloads[i] = make([]byte, payloadSize)
		if _, err := rand.Read(payloads[i]); err != nil {
			return oops.Wrapf(err, "failed to generate payload")
		}
		outstanding[string(payloads[i])]++
	}

	go func() {
		for _, p := range payloads {
			msg, err := tcfg.NewMessage(p)
			if err == nil {
				err = relay.Submit(ctx, msg)
			}
			if err != nil {
				submitErr <- err
				return
			}
		}
		submitErr <- nil
	}()

	idle := time.NewTimer(5 * time.Second)
	defer idle.Stop()
	for s.Delivered+int(relay.TotalDropped()) < messages {
		select {
		case p := <-relay.Delivered():
			s.Delivered++
			key := string(p)
			if outstanding[key] == 0 {
				s.Mismatched++
			} else {
				outstanding[key]--
			}
			idle.Reset(5 * time.Second)
		case err := <-submitErr:
			if err != nil {
				return oops.Wrapf(err, "submit failed after %d messages", s.Sent)
			}
			s.Sent = messages
		case <-idle.C:
			return oops.Errorf("no payload delivered for 5s")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.Sent = messages
	return nil
}

// relayHops builds the stages the way the routers on the path would: every
// hop rebuilds its own HopConfig from its serialized build request record and
// never sees the others. The endpoint stage uses the creator's full path.
func relayHops(tcfg *tunnel.TunnelConfig, clock *monotonic.Clock) ([]router.Hop, error) {
	records, err := i2np.RecordsForTunnel(tcfg, clock.Now())
	if err != nil {
		return nil, err
	}

	n := tcfg.Length()
	hops := make([]router.Hop, n)
	for i, rec := range records {
		wire, err := i2np.ReadBuildRequestRecord(rec.Bytes())
		if err != nil {
			return nil, err
		}
		if err := wire.CheckRequestTime(clock); err != nil {
			return nil, err
		}

		var from *common.Hash
		if p, ok := tcfg.Predecessor(i); ok {
			from = &p
		}
		hop, err := wire.HopConfig(from, tcfg.Hop(i).Expiration())
		if err != nil {
			return nil, oops.Wrapf(err, "hop %d", i)
		}

		var stage tunnel.Stage
		switch {
		case i == 0:
			stage, err = tunnel.NewGatewayProcessor(hop, clock)
		case i == n-1:
			stage, err = tunnel.NewEndpointProcessor(tcfg, clock)
		default:
			stage, err = tunnel.NewHopProcessor(hop, clock)
		}
		if err != nil {
			return nil, oops.Wrapf(err, "hop %d", i)
		}
		hops[i] = router.Hop{Peer: hop.Peer(), Stage: stage}
	}
	return hops, nil
}

func randomPeers(n int) ([]common.Hash, error) {
	peers := make([]common.Hash, n)
	seed := make([]byte, 32)
	for i := range peers {
		if _, err := rand.Read(seed); err != nil {
			return nil, oops.Wrapf(err, "failed to generate peer identity")
		}
		peers[i] = common.HashData(seed)
	}
	for i := 1; i < n; i++ {
		if peers[i] == peers[i-1] {
			return nil, oops.Errorf("generated duplicate peer identity")
		}
	}
	return peers, nil
}
