package thinkerbell

import (
	"sync"

	"github.com/golang/glog"

	"github.com/vesper-home/hub/metrics"
	"github.com/vesper-home/hub/taxonomy"
)

// condMsg is the typed message spec.md §4.4 posts into a rule's mailbox:
// "{rule-index, condition-index, event}".
type condMsg struct {
	ruleIdx, condIdx int
	event            taxonomy.Event
}

// Executor installs a watch per condition of a compiled Script, runs a
// single mailbox goroutine that tracks per-condition truth and fires a
// rule's statements on the false→true rising edge of its conjunction,
// and tears everything down cleanly on Stop (spec.md §4.4).
type Executor struct {
	script    *Script
	fe        taxonomy.Frontend
	principal taxonomy.Principal
	scriptID  string
	metrics   *metrics.Rules

	mailbox     chan condMsg
	stopCh      chan chan struct{}
	forwardStop chan struct{}
	handles     []taxonomy.WatchHandle
	wg          sync.WaitGroup
}

// StartExecutor registers a watch for every condition across every rule
// in script, then starts the mailbox goroutine. On a registration
// failure partway through, every watch already installed is released
// before the error is returned.
func StartExecutor(script *Script, fe taxonomy.Frontend, principal taxonomy.Principal, scriptID string, m *metrics.Rules) (*Executor, error) {
	ex := &Executor{
		script:      script,
		fe:          fe,
		principal:   principal,
		scriptID:    scriptID,
		metrics:     m,
		mailbox:     make(chan condMsg, 256),
		stopCh:      make(chan chan struct{}),
		forwardStop: make(chan struct{}),
	}
	for ri, rule := range script.Rules {
		for ci, match := range rule.Conditions {
			handle, err := fe.RegisterWatch([]taxonomy.WatchTarget{
				{Selector: match.Selector, Predicate: taxonomy.PredExactly(match.Range)},
			}, principal)
			if err != nil {
				for _, h := range ex.handles {
					h.Close()
				}
				return nil, err
			}
			ex.handles = append(ex.handles, handle)
			ex.wg.Add(1)
			go ex.forward(handle, ri, ci)
		}
	}
	go ex.run()
	if m != nil {
		m.RunStarted()
	}
	return ex, nil
}

func (ex *Executor) forward(h taxonomy.WatchHandle, ruleIdx, condIdx int) {
	defer ex.wg.Done()
	for {
		select {
		case e, ok := <-h.Events():
			if !ok {
				return
			}
			select {
			case ex.mailbox <- condMsg{ruleIdx: ruleIdx, condIdx: condIdx, event: e}:
			case <-ex.forwardStop:
				return
			}
		case <-ex.forwardStop:
			return
		}
	}
}

func (ex *Executor) run() {
	for {
		select {
		case msg := <-ex.mailbox:
			ex.handle(msg)
		case reply := <-ex.stopCh:
			ex.drain()
			for _, h := range ex.handles {
				if err := h.Close(); err != nil {
					glog.Warningf("thinkerbell: %s: watch close: %v", ex.scriptID, err)
				}
			}
			close(ex.forwardStop)
			ex.wg.Wait()
			close(reply)
			return
		}
	}
}

func (ex *Executor) drain() {
	for {
		select {
		case msg := <-ex.mailbox:
			ex.handle(msg)
		default:
			return
		}
	}
}

func (ex *Executor) handle(msg condMsg) {
	rule := ex.script.Rules[msg.ruleIdx]
	match := rule.Conditions[msg.condIdx]
	switch msg.event.Kind {
	case taxonomy.EventEnter:
		match.featuresInRange[msg.event.Feature] = true
	case taxonomy.EventExit:
		match.featuresInRange[msg.event.Feature] = false
	case taxonomy.EventFeatureRemoved:
		delete(match.featuresInRange, msg.event.Feature)
	case taxonomy.EventFeatureAdded:
		// membership change only; the feature's own Enter/Exit (if any)
		// follows once the adapter reports a value.
	}
	nowArmed := allConditionsMet(rule.Conditions)
	if !rule.armed && nowArmed {
		ex.fire(rule)
	}
	rule.armed = nowArmed
}

func allConditionsMet(conditions []*Match) bool {
	for _, m := range conditions {
		if !m.isMet() {
			return false
		}
	}
	return true
}

// fire resolves and dispatches every statement of an armed rule.
// Statement failures are logged, never propagated — the rule stays
// armed and ready to fire again on the next rising edge (spec.md §4.4,
// §7).
func (ex *Executor) fire(rule *Rule) {
	ok := true
	for _, stmt := range rule.Execute {
		if err := ex.executeStatement(stmt); err != nil {
			ok = false
			glog.Warningf("thinkerbell: %s: statement dispatch: %v", ex.scriptID, err)
		}
	}
	if ex.metrics != nil {
		ex.metrics.Fired(ex.scriptID, ok)
	}
}

func (ex *Executor) executeStatement(stmt *Statement) error {
	features := ex.fe.GetFeatures(stmt.Selector)
	var reqs []taxonomy.MethodRequest
	for _, f := range features {
		if stmt.KindFilter != nil && f.Send.Kind != *stmt.KindFilter {
			continue
		}
		reqs = append(reqs, taxonomy.MethodRequest{
			Selector: taxonomy.WithFeatureID(f.ID),
			Payload:  stmt.Value,
		})
	}
	if len(reqs) == 0 {
		return nil
	}
	results, err := ex.fe.PlaceMethodCall(taxonomy.MethodSend, reqs, ex.principal)
	if err != nil {
		return err
	}
	var firstErr error
	for fid, res := range results {
		if res.Err != nil && firstErr == nil {
			firstErr = res.Err
		}
		_ = fid
	}
	return firstErr
}

// Stop drains the mailbox, releases every watch this executor installed
// (cancelling with the owning adapters), and blocks until teardown
// completes (spec.md §4.4 "Shutdown").
func (ex *Executor) Stop() {
	reply := make(chan struct{})
	ex.stopCh <- reply
	<-reply
	if ex.metrics != nil {
		ex.metrics.RunFinished()
	}
}
