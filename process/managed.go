// Package process supervises a spawned child with exponential backoff
// and clean shutdown (spec.md §4.6), mirroring the teacher's general
// stance that a long-running daemon owns and restarts its own worker
// goroutines/processes rather than relying on an external supervisor.
/*
 * Copyright (c) 2018-2026, Vesper Home Hub Authors. All rights reserved.
 */
package process

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/vesper-home/hub/metrics"
)

// ChildHandle is the running-child view a SpawnFunc hands back to
// Managed: enough to block for exit, check non-blocking whether it
// already has, and force-kill it (spec.md §3 "Supervised child").
type ChildHandle interface {
	Pid() int
	// Wait blocks until the child exits. Called exactly once per spawn,
	// from the supervisor goroutine.
	Wait() error
	// TryWait reports, without blocking, whether Wait has already
	// observed this child's exit.
	TryWait() (exited bool, err error)
	Kill() error
}

// SpawnFunc starts one fresh instance of the supervised child.
type SpawnFunc func() (ChildHandle, error)

const defaultRestartThreshold = 5 * time.Second

// Managed supervises one spawned child, restarting it with the backoff
// curve spec.md §4.6 defines whenever it exits, until Shutdown is
// called.
type Managed struct {
	name      string
	spawn     SpawnFunc
	threshold time.Duration
	metrics   *metrics.Process

	mu        sync.Mutex
	child     ChildHandle
	startTime time.Time
	backoffK  int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Start spawns the supervisor goroutine. threshold is spec.md §4.6's
// restart_threshold; zero selects the spec's 5s default.
func Start(name string, spawn SpawnFunc, threshold time.Duration, m *metrics.Process) *Managed {
	if threshold <= 0 {
		threshold = defaultRestartThreshold
	}
	mp := &Managed{
		name:      name,
		spawn:     spawn,
		threshold: threshold,
		metrics:   m,
		backoffK:  1,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go mp.run()
	return mp
}

func (mp *Managed) run() {
	defer close(mp.doneCh)
	for {
		if mp.stopRequested() {
			return
		}

		child, err := mp.spawn()
		if err != nil {
			glog.Errorf("process %s: spawn: %v", mp.name, err)
		} else {
			mp.setChild(child)
			mp.markStarted()
			if mp.metrics != nil {
				mp.metrics.Restarted(mp.name)
			}
			if waitErr := child.Wait(); waitErr != nil {
				glog.Warningf("process %s: exited: %v", mp.name, waitErr)
			}
			mp.setChild(nil)
		}

		if mp.stopRequested() {
			return
		}

		delay := mp.nextBackoff()
		if mp.metrics != nil {
			mp.metrics.BackoffSet(mp.name, delay.Seconds())
		}
		select {
		case <-time.After(delay):
		case <-mp.stopCh:
			return
		}
	}
}

func (mp *Managed) stopRequested() bool {
	select {
	case <-mp.stopCh:
		return true
	default:
		return false
	}
}

func (mp *Managed) setChild(c ChildHandle) {
	mp.mu.Lock()
	mp.child = c
	mp.mu.Unlock()
}

// markStarted stamps start_time at the moment a child is actually
// spawned, so nextBackoff later measures the child's runtime alone —
// not the runtime plus whatever backoff sleep preceded it.
func (mp *Managed) markStarted() {
	mp.mu.Lock()
	mp.startTime = time.Now()
	mp.mu.Unlock()
}

// nextBackoff implements spec.md §4.6's curve: a restart following
// closely (within threshold) on the previous start increments k and
// sleeps (k*k)/2 seconds using integer division — the sequence that
// produces 2, 4, 8, 12, 18, 24s for successive quick restarts. A restart
// following a long-lived run resets k to 1 and sleeps zero. start_time
// itself is stamped by markStarted at spawn time, not here.
func (mp *Managed) nextBackoff() time.Duration {
	now := time.Now()
	mp.mu.Lock()
	defer mp.mu.Unlock()
	var seconds int
	if !mp.startTime.IsZero() && now.Sub(mp.startTime) < mp.threshold {
		mp.backoffK++
		seconds = (mp.backoffK * mp.backoffK) / 2
	} else {
		mp.backoffK = 1
		seconds = 0
	}
	return time.Duration(seconds) * time.Second
}

// Shutdown sets the kill-signal, snapshots the current child, checks
// (non-blocking) whether it has already exited to avoid a pid-reuse
// hazard, force-kills it otherwise, then joins the supervisor goroutine
// (spec.md §4.6).
func (mp *Managed) Shutdown() error {
	mp.stopOnce.Do(func() { close(mp.stopCh) })

	mp.mu.Lock()
	child := mp.child
	mp.mu.Unlock()

	if child != nil {
		exited, err := child.TryWait()
		if err != nil {
			glog.Warningf("process %s: non-blocking wait: %v", mp.name, err)
		}
		if !exited {
			if err := child.Kill(); err != nil {
				glog.Warningf("process %s: kill: %v", mp.name, err)
			}
		}
	}
	<-mp.doneCh
	return nil
}
