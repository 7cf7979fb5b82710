// Package router drives tunnel messages hop by hop through the tunnel
// processors, the way routers along a path would.
//
// # Relay
//
// A Relay owns one stage per hop. Each stage has an inbound queue and a set
// of worker goroutines. A worker takes a message, calls the hop's processor
// with the previous hop's identity as the claimed predecessor and, on
// success, hands the buffer to the next stage's queue. The endpoint stage
// publishes the recovered payload on Delivered(). A message the processor
// rejects is dropped and counted.
//
// # Replay
//
// Every stage remembers the chaining IVs it has accepted (IVFilter, or the
// IVValidator from Options.NewIVValidator). A message whose IV the stage has
// already seen is dropped before its processor runs and counted as replayed.
//
// Ingress at the gateway is paced with a token bucket. Workers run under an
// errgroup and stop when the Run context is cancelled or Close is called.
//
// # Buffer Ownership
//
// A buffer belongs to exactly one stage at a time; the channel send hands it
// over. Callers must not touch a buffer after Submit, and own the payload
// slice they receive from Delivered().
//
// # Usage Example
//
//	relay, err := router.NewRelayForTunnel(cfg, clock, router.DefaultOptions())
//	go relay.Run(ctx)
//	relay.Submit(ctx, msg)
//	payload := <-relay.Delivered()
package router
