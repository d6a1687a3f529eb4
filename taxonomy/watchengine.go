package taxonomy

import (
	"github.com/golang/glog"

	"github.com/vesper-home/hub/cmn"
)

// pendingInstall is a (watch, feature) pair awaiting an adapter-side
// RegisterWatch call. Adapter calls never happen inside the actor loop
// (spec.md §4.1.3/§5) — the actor only ever produces/consumes these
// structs; the two-phase dance (quick submit, adapter I/O in the caller,
// quick submit to install results) lives in installWatches below.
type pendingInstall struct {
	watchID   WatchID
	featureID FeatureID
	adapter   Adapter
	pred      Predicate
}

// reconcileNewFeature is spec.md §4.1.3's live-reconciliation rule:
// whenever a feature is added, every active watch is re-evaluated, and a
// match produces a fresh per-feature adapter registration. Called from
// inside the actor loop (addFeature); only touches in-memory state and
// returns work for the caller to carry out.
func (b *Backend) reconcileNewFeature(fid FeatureID, f *Feature, svc *Service) []pendingInstall {
	var pending []pendingInstall
	adapter := b.adapters[f.AdapterID]
	for wid, sub := range b.watchers {
		if sub.closed {
			continue
		}
		pred, matched := sub.predicateFor(fid, f, svc)
		if !matched {
			continue
		}
		b.featureWatchers[fid] = append(b.featureWatchers[fid], wid)
		pending = append(pending, pendingInstall{watchID: wid, featureID: fid, adapter: adapter, pred: pred})
	}
	return pending
}

// installWatches performs the adapter-side RegisterWatch call for each
// pending install (outside the actor loop — this runs in the calling
// goroutine) and then submits one quick closure per result to record the
// guard and emit FeatureAdded, keeping the serialization point free of
// adapter I/O the whole time.
func (b *Backend) installWatches(pending []pendingInstall) {
	for _, p := range pending {
		if p.adapter == nil {
			continue
		}
		sink := func(e AdapterEvent) { b.onAdapterEvent(p.watchID, e) }
		guard, err := p.adapter.RegisterWatch(p.featureID, p.pred, sink)
		if err != nil {
			glog.Warningf("adapter %s register_watch on %s: %v", p.adapter.ID(), p.featureID, err)
			continue
		}
		watchID, featureID := p.watchID, p.featureID
		b.submit(func() {
			sub, ok := b.watchers[watchID]
			if !ok || sub.closed {
				guard.Close()
				return
			}
			sub.adapterGuards[featureID] = guard
			sub.emit(Event{Kind: EventFeatureAdded, Feature: featureID})
		})
	}
}

// onAdapterEvent is the sink every installed adapter watch guard posts
// into; it implements the edge-triggered predicate semantics of spec.md
// §4.1.3 ("Event semantics"). Runs via submit so the edge-trigger state
// (subscription.inRange) is only ever touched by the actor.
func (b *Backend) onAdapterEvent(watchID WatchID, e AdapterEvent) {
	b.submit(func() {
		sub, ok := b.watchers[watchID]
		if !ok || sub.closed {
			return
		}
		f, ok := b.features[e.Feature]
		if !ok {
			return
		}
		var svc *Service
		if s, ok := b.services[f.ServiceID]; ok {
			svc = s
		}
		pred, matched := sub.predicateFor(e.Feature, f, svc)
		if !matched {
			return
		}
		switch pred.kind {
		case predAlways:
			sub.emit(Event{Kind: EventEnter, Feature: e.Feature, Value: e.Value})
		case predNever:
			// membership changes only; a value update is not a
			// membership change.
		case predExactly:
			if !pred.rng.Typed(e.Value) {
				return // untypeable: silently dropped, spec.md §4.1.3
			}
			nowIn := pred.rng.Contains(e.Value)
			wasIn, seen := sub.inRange[e.Feature]
			sub.inRange[e.Feature] = nowIn
			switch {
			case !seen && nowIn:
				sub.emit(Event{Kind: EventEnter, Feature: e.Feature, Value: e.Value})
			case seen && !wasIn && nowIn:
				sub.emit(Event{Kind: EventEnter, Feature: e.Feature, Value: e.Value})
			case seen && wasIn && !nowIn:
				sub.emit(Event{Kind: EventExit, Feature: e.Feature, Value: e.Value})
			}
		}
	})
}

// RegisterWatch resolves targets' selectors against the current feature
// set, installs a per-feature adapter watch for each match, and returns a
// guard whose Close cancels everything (spec.md §4.1.3).
func (b *Backend) RegisterWatch(targets []WatchTarget, principal Principal) (*WatchGuard, error) {
	if !b.authz.AllowWatch(principal) {
		return nil, cmn.NewPermissionError("%s may not register watches", principal.UserID)
	}
	id := newWatchID()
	var pending []pendingInstall
	var sub *subscription
	b.submit(func() {
		sub = newSubscription(id, targets)
		b.watchers[id] = sub
		for fid, f := range b.features {
			svc := b.services[f.ServiceID]
			pred, matched := sub.predicateFor(fid, f, svc)
			if !matched {
				continue
			}
			b.featureWatchers[fid] = append(b.featureWatchers[fid], id)
			pending = append(pending, pendingInstall{
				watchID: id, featureID: fid, adapter: b.adapters[f.AdapterID], pred: pred,
			})
		}
	})
	b.installWatches(pending)
	return &WatchGuard{id: id, backend: b, events: sub.events}, nil
}

// cancelWatch is invoked by WatchGuard.Close. It collects the
// subscription's adapter guards (inside the actor loop) and closes them
// outside it, guaranteeing — per spec.md §5's cancellation contract —
// that every adapter guard is released before Close returns.
func (b *Backend) cancelWatch(id WatchID) error {
	var guards []AdapterWatchGuard
	b.submit(func() {
		sub, ok := b.watchers[id]
		if !ok {
			return
		}
		sub.closed = true
		for fid, g := range sub.adapterGuards {
			guards = append(guards, g)
			delete(sub.adapterGuards, fid)
		}
		for fid, ids := range b.featureWatchers {
			b.featureWatchers[fid] = removeWatchID(ids, id)
		}
		delete(b.watchers, id)
	})
	closeGuardsBestEffort(guards)
	return nil
}

func removeWatchID(ids []WatchID, target WatchID) []WatchID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

/////////////////////
// Method dispatch //
/////////////////////

// MethodRequest is one (selector, payload) entry in a place_method_call
// batch; Payload is unused for Fetch.
type MethodRequest struct {
	Selector FeatureSelector
	Payload  Value
}

// MethodResult is the merged per-feature outcome spec.md §4.1.2
// describes: a value for Fetch, or just success/failure for Send/Delete.
type MethodResult struct {
	Value    Value
	HasValue bool
	Err      error
}

// PlaceMethodCall resolves every request's selectors to concrete
// features, groups by owning adapter, and invokes each adapter's
// corresponding batch method exactly once — all outside the actor loop,
// so one slow adapter cannot stall another (one goroutine per adapter).
// A matched feature whose adapter is gone or omits it from its reply
// comes back as NoSuchFeature; a selector that matches no feature adds
// no entry. On a repeated feature id across requests, the last one wins
// (spec.md §4.1.2 tie-break).
func (b *Backend) PlaceMethodCall(method Method, requests []MethodRequest, principal Principal) (map[FeatureID]MethodResult, error) {
	if !b.authz.Allow(principal, method) {
		return nil, cmn.NewPermissionError("%s may not %s", principal.UserID, method)
	}
	type resolved struct {
		adapter Adapter
		payload Value
	}
	byFeature := make(map[FeatureID]resolved)
	b.submit(func() {
		for _, req := range requests {
			for fid, f := range b.features {
				svc := b.services[f.ServiceID]
				if !req.Selector.Matches(f, svc) {
					continue
				}
				sig := signatureFor(f, method)
				if sig.Support == SupportAbsent {
					continue
				}
				byFeature[fid] = resolved{adapter: b.adapters[f.AdapterID], payload: req.Payload}
			}
		}
	})

	byAdapter := make(map[AdapterID]map[FeatureID]Value)
	adapterByID := make(map[AdapterID]Adapter)
	for fid, r := range byFeature {
		if r.adapter == nil {
			continue
		}
		aid := r.adapter.ID()
		if byAdapter[aid] == nil {
			byAdapter[aid] = make(map[FeatureID]Value)
		}
		byAdapter[aid][fid] = r.payload
		adapterByID[aid] = r.adapter
	}

	type adapterOutcome struct {
		fetched map[FeatureID]FetchResult
		acked   map[FeatureID]error
	}
	outcomes := make(chan adapterOutcome, len(byAdapter))
	for aid, batch := range byAdapter {
		batch, adapter := batch, adapterByID[aid]
		go func() {
			var o adapterOutcome
			switch method {
			case MethodFetch:
				o.fetched, _ = adapter.FetchValues(batch)
			case MethodSend:
				o.acked, _ = adapter.SendValues(batch)
			case MethodDelete:
				o.acked, _ = adapter.DeleteValues(batch)
			}
			outcomes <- o
		}()
	}

	results := make(map[FeatureID]MethodResult, len(byFeature))
	for fid := range byFeature {
		results[fid] = MethodResult{Err: cmn.NewNoSuchFeatureError(fid.String())}
	}
	for range byAdapter {
		o := <-outcomes
		if method == MethodFetch {
			for fid, fr := range o.fetched {
				results[fid] = MethodResult{Value: fr.Value, HasValue: fr.Err == nil, Err: fr.Err}
			}
		} else {
			for fid, err := range o.acked {
				results[fid] = MethodResult{Err: err}
			}
		}
	}
	return results, nil
}

func signatureFor(f *Feature, m Method) Signature {
	switch m {
	case MethodFetch:
		return f.Fetch
	case MethodSend:
		return f.Send
	case MethodDelete:
		return f.Delete
	default:
		return Signature{}
	}
}
