package process_test

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/vesper-home/hub/process"
)

// fakeChild is a ChildHandle double that exits as soon as exitCh closes
// and records whether Kill was called.
type fakeChild struct {
	pid    int
	exitCh chan struct{}

	mu     sync.Mutex
	exited bool
	killed int32
}

func newFakeChild(pid int) *fakeChild {
	return &fakeChild{pid: pid, exitCh: make(chan struct{})}
}

func (f *fakeChild) Pid() int { return f.pid }

func (f *fakeChild) Wait() error {
	<-f.exitCh
	f.mu.Lock()
	f.exited = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChild) TryWait() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exited, nil
}

func (f *fakeChild) Kill() error {
	atomic.AddInt32(&f.killed, 1)
	select {
	case <-f.exitCh:
	default:
		close(f.exitCh)
	}
	return nil
}

var _ = Describe("Managed", func() {
	It("restarts a child that exits, then force-kills the next one on Shutdown", func() {
		var spawned int32
		var current atomic.Value

		spawn := func() (process.ChildHandle, error) {
			n := atomic.AddInt32(&spawned, 1)
			c := newFakeChild(int(n))
			current.Store(c)
			return c, nil
		}

		mp := process.Start("test-child", spawn, 50*time.Millisecond, nil)
		defer mp.Shutdown()

		Eventually(func() int32 { return atomic.LoadInt32(&spawned) }).Should(BeNumerically(">=", 1))

		first := current.Load().(*fakeChild)
		close(first.exitCh)

		Eventually(func() int32 { return atomic.LoadInt32(&spawned) }, "3s").Should(BeNumerically(">=", 2))

		Expect(mp.Shutdown()).To(Succeed())

		second := current.Load().(*fakeChild)
		Expect(atomic.LoadInt32(&second.killed)).To(Equal(int32(1)))
	})

	It("does not force-kill a child that already exited before Shutdown ran", func() {
		var current atomic.Value
		spawn := func() (process.ChildHandle, error) {
			c := newFakeChild(1)
			close(c.exitCh)
			current.Store(c)
			return c, nil
		}

		mp := process.Start("quiet-child", spawn, time.Second, nil)
		time.Sleep(50 * time.Millisecond)
		Expect(mp.Shutdown()).To(Succeed())

		child := current.Load().(*fakeChild)
		Expect(atomic.LoadInt32(&child.killed)).To(Equal(int32(0)))
	})

	It("escalates the backoff delay across successive quick restarts instead of resetting every other one", func() {
		var mu sync.Mutex
		var spawnTimes []time.Time
		spawned := make(chan struct{}, 16)

		spawn := func() (process.ChildHandle, error) {
			mu.Lock()
			spawnTimes = append(spawnTimes, time.Now())
			mu.Unlock()
			c := newFakeChild(1)
			close(c.exitCh)
			spawned <- struct{}{}
			return c, nil
		}

		mp := process.Start("crash-loop-child", spawn, 300*time.Millisecond, nil)
		defer mp.Shutdown()

		for i := 0; i < 3; i++ {
			Eventually(spawned, "10s").Should(Receive())
		}

		mu.Lock()
		times := append([]time.Time(nil), spawnTimes...)
		mu.Unlock()
		Expect(times).To(HaveLen(3))

		firstGap := times[1].Sub(times[0])
		secondGap := times[2].Sub(times[1])

		// start_time is stamped at spawn, so the gap before the second
		// spawn already reflects a real (k=2) backoff of ~2s rather than
		// the near-zero gap produced when a stale start_time — stamped
		// after the previous sleep — makes the next restart look quick.
		// The gap before the third spawn escalates further (k=3, ~4s)
		// instead of resetting back toward zero.
		Expect(firstGap).To(BeNumerically(">=", 1200*time.Millisecond))
		Expect(secondGap).To(BeNumerically(">=", firstGap+1200*time.Millisecond))
	})
})
