package taxonomy

import (
	"sync"

	"github.com/vesper-home/hub/cmn"
)

// DummyAdapter is an in-memory Adapter used by tests and local
// development (spec.md §1 lists it explicitly as in-scope): fetch/send
// just read/write a map, delete clears an entry, and watches are driven
// by PushValue rather than any real device I/O.
type DummyAdapter struct {
	id      AdapterID
	name    string
	vendor  string
	version [4]uint32

	mu       sync.Mutex
	values   map[FeatureID]Value
	watchers map[FeatureID]map[*dummyGuard]func(AdapterEvent)
	sendLog  map[FeatureID][]Value
}

func NewDummyAdapter(id AdapterID, name string) *DummyAdapter {
	return &DummyAdapter{
		id:       id,
		name:     name,
		vendor:   "vesper",
		version:  [4]uint32{1, 0, 0, 0},
		values:   make(map[FeatureID]Value),
		watchers: make(map[FeatureID]map[*dummyGuard]func(AdapterEvent)),
		sendLog:  make(map[FeatureID][]Value),
	}
}

func (a *DummyAdapter) ID() AdapterID      { return a.id }
func (a *DummyAdapter) Name() string       { return a.name }
func (a *DummyAdapter) Vendor() string     { return a.vendor }
func (a *DummyAdapter) Version() [4]uint32 { return a.version }

func (a *DummyAdapter) FetchValues(request map[FeatureID]Value) (map[FeatureID]FetchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[FeatureID]FetchResult, len(request))
	for fid := range request {
		v, ok := a.values[fid]
		if !ok {
			out[fid] = FetchResult{Err: cmn.NewNoSuchFeatureError(fid.String())}
			continue
		}
		out[fid] = FetchResult{Value: v}
	}
	return out, nil
}

func (a *DummyAdapter) SendValues(request map[FeatureID]Value) (map[FeatureID]error, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[FeatureID]error, len(request))
	for fid, v := range request {
		a.values[fid] = v
		a.sendLog[fid] = append(a.sendLog[fid], v)
		out[fid] = nil
		a.notifyLocked(fid, v)
	}
	return out, nil
}

// LastSendFor and SendCountFor expose what a test adapter received
// through SendValues, used by thinkerbell's executor tests to observe
// statement dispatch (spec.md §8 scenario 4: "the target adapter records
// exactly one send_values for that feature").
func (a *DummyAdapter) LastSendFor(fid FeatureID) (Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	log := a.sendLog[fid]
	if len(log) == 0 {
		return Value{}, false
	}
	return log[len(log)-1], true
}

func (a *DummyAdapter) SendCountFor(fid FeatureID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sendLog[fid])
}

func (a *DummyAdapter) DeleteValues(request map[FeatureID]Value) (map[FeatureID]error, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[FeatureID]error, len(request))
	for fid := range request {
		delete(a.values, fid)
		out[fid] = nil
	}
	return out, nil
}

// PushValue simulates a device-initiated reading, notifying every watch
// registered on feature id. Safe to call from any goroutine.
func (a *DummyAdapter) PushValue(fid FeatureID, v Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[fid] = v
	a.notifyLocked(fid, v)
}

func (a *DummyAdapter) notifyLocked(fid FeatureID, v Value) {
	for _, sink := range a.watchers[fid] {
		sink(AdapterEvent{Feature: fid, Value: v})
	}
}

func (a *DummyAdapter) RegisterWatch(feature FeatureID, pred Predicate, sink func(AdapterEvent)) (AdapterWatchGuard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := &dummyGuard{adapter: a, feature: feature}
	set, ok := a.watchers[feature]
	if !ok {
		set = make(map[*dummyGuard]func(AdapterEvent))
		a.watchers[feature] = set
	}
	set[g] = sink
	return g, nil
}

type dummyGuard struct {
	adapter *DummyAdapter
	feature FeatureID
	closed  bool
}

func (g *dummyGuard) Close() error {
	g.adapter.mu.Lock()
	defer g.adapter.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	delete(g.adapter.watchers[g.feature], g)
	return nil
}
