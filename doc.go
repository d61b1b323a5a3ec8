// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package session implements the session core of a signal-acquisition
// framework: a single-threaded, cooperative event loop that multiplexes a
// dynamic set of timer-plus-file-descriptor event sources, threads data
// packets from acquisition devices through an ordered transform chain before
// fanning them out to subscribers, and coordinates startup and shutdown
// across a session goroutine and any number of foreign callers.
//
// # Architecture
//
// The core is layered bottom-up:
//
//   - a monotonic clock (clock.go) supplying non-decreasing microsecond
//     timestamps for every deadline computation;
//   - a source registry (registry.go) holding the ordered set of event
//     sources and their aggregated poll descriptors;
//   - a poll driver (poller.go) performing one blocking poll(2) across the
//     aggregated descriptors with a timeout computed from the registry's
//     deadlines;
//   - an iteration engine (iterate.go) that blends I/O readiness with
//     per-source timeouts, dispatches callbacks, and tolerates callbacks
//     that mutate the source list mid-dispatch;
//   - a lifecycle controller (session.go) driving New/Start/Run/Stop/Destroy
//     across attached devices;
//   - a data-feed bus (datafeed.go) and packet codec (packet.go) threading
//     typed packets through transforms to subscribers.
//
// Device drivers, trigger structures, and packet payload memory layouts are
// external collaborators; the core treats them as opaque interfaces (see
// device.go, trigger.go, usb.go).
//
// # Concurrency
//
// The iteration engine is strictly single-threaded cooperative: every source
// callback, transform, and subscriber callback runs on the goroutine that
// called Run. The only state shared across goroutines is the
// (abort, running) pair guarded by a dedicated mutex (see abort.go); calling
// any mutator method from a foreign goroutine while Run is active is
// undefined, with the sole exception of Stop.
//
// # Usage
//
//	sess, err := session.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Destroy()
//
//	sess.DevAdd(context.Background(), dev)
//	if err := sess.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	go func() {
//	    time.Sleep(time.Second)
//	    sess.Stop()
//	}()
//
//	if err := sess.Run(); err != nil {
//	    log.Fatal(err)
//	}
package session
