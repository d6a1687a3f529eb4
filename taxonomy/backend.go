package taxonomy

import (
	"github.com/golang/glog"

	"github.com/vesper-home/hub/cmn"
	"github.com/vesper-home/hub/metrics"
)

// Backend is the taxonomy's single-threaded actor: it owns every index in
// spec.md §4.1.1 exclusively, consuming operations off opCh in submission
// order. Every exported method is a thin "build a closure, submit it,
// wait" wrapper — the concurrency contract in spec.md §4.1/§5 in full:
// callers may invoke methods concurrently and cheaply; the actor
// goroutine is the only thing that ever reads or writes the maps below.
type Backend struct {
	opCh chan func()
	stop chan struct{}

	authz   Authorizer
	metrics *metrics.Taxonomy

	// Owned exclusively by run(); never touched from any other goroutine.
	adapters        map[AdapterID]Adapter
	services        map[ServiceID]*Service
	features        map[FeatureID]*Feature
	adapterServices map[AdapterID]map[ServiceID]struct{}
	tags            *tagIndex
	watchers        map[WatchID]*subscription
	featureWatchers map[FeatureID][]WatchID
}

func NewBackend(authz Authorizer, queueSize int, m *metrics.Taxonomy) *Backend {
	if authz == nil {
		authz = RoleAuthorizer
	}
	b := &Backend{
		opCh:            make(chan func(), queueSize),
		stop:            make(chan struct{}),
		authz:           authz,
		metrics:         m,
		adapters:        make(map[AdapterID]Adapter),
		services:        make(map[ServiceID]*Service),
		features:        make(map[FeatureID]*Feature),
		adapterServices: make(map[AdapterID]map[ServiceID]struct{}),
		tags:            newTagIndex(),
		watchers:        make(map[WatchID]*subscription),
		featureWatchers: make(map[FeatureID][]WatchID),
	}
	go b.run()
	return b
}

func (b *Backend) run() {
	for {
		select {
		case fn := <-b.opCh:
			fn()
		case <-b.stop:
			for {
				select {
				case fn := <-b.opCh:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Stop halts the actor loop. Any operation already queued is processed
// first; nothing new may be submitted afterward.
func (b *Backend) Stop() { close(b.stop) }

// submit hands a quick, non-blocking closure to the actor goroutine and
// waits for it to run, in submission order relative to this caller
// (spec.md §5 ordering guarantee). It must never itself invoke adapter
// code — see RegisterWatch/PlaceMethodCall for the two-phase pattern that
// keeps adapter I/O off this path entirely.
func (b *Backend) submit(fn func()) {
	done := make(chan struct{})
	b.opCh <- func() {
		fn()
		close(done)
	}
	<-done
}

/////////////////
// Registration //
/////////////////

func (b *Backend) AddAdapter(a Adapter) error {
	var err error
	b.submit(func() { err = b.addAdapter(a) })
	return err
}

func (b *Backend) addAdapter(a Adapter) error {
	id := a.ID()
	if _, exists := b.adapters[id]; exists {
		return cmn.NewDuplicateAdapterError(id.String())
	}
	b.adapters[id] = a
	b.adapterServices[id] = make(map[ServiceID]struct{})
	if b.metrics != nil {
		b.metrics.AdapterRegistered()
	}
	return nil
}

// RemoveAdapter cascades onto every owned service and feature, cancels
// affected watches (FeatureRemoved to each), then removes the adapter —
// spec.md §4.1.2's cascade-remove invariant. Adapter-side watch guards
// are closed outside the actor loop, best-effort, per the no-adapter-
// -call-while-serializing rule in §4.1.3/§5.
func (b *Backend) RemoveAdapter(id AdapterID) error {
	var err error
	var guards []AdapterWatchGuard
	b.submit(func() { guards, err = b.removeAdapter(id) })
	closeGuardsBestEffort(guards)
	return err
}

func (b *Backend) removeAdapter(id AdapterID) ([]AdapterWatchGuard, error) {
	if _, ok := b.adapters[id]; !ok {
		return nil, cmn.NewNoSuchAdapterError(id.String())
	}
	var collected []AdapterWatchGuard
	owned := b.adapterServices[id]
	svcIDs := make([]ServiceID, 0, len(owned))
	for sid := range owned {
		svcIDs = append(svcIDs, sid)
	}
	for _, sid := range svcIDs {
		collected = append(collected, b.removeService(sid)...)
	}
	delete(b.adapterServices, id)
	delete(b.adapters, id)
	if b.metrics != nil {
		b.metrics.AdapterRemoved()
	}
	return collected, nil
}

func (b *Backend) AddService(s *Service) error {
	var err error
	b.submit(func() { err = b.addService(s) })
	return err
}

func (b *Backend) addService(s *Service) error {
	if len(s.Features) != 0 {
		return cmn.NewInvalidInitialServiceError(s.ID.String())
	}
	if _, ok := b.adapters[s.AdapterID]; !ok {
		return cmn.NewNoSuchAdapterError(s.AdapterID.String())
	}
	if _, exists := b.services[s.ID]; exists {
		return cmn.NewDuplicateServiceError(s.ID.String())
	}
	err := runAll(
		txnStep{
			do:   func() error { b.services[s.ID] = s; return nil },
			undo: func() { delete(b.services, s.ID) },
		},
		txnStep{
			do: func() error {
				set := b.adapterServices[s.AdapterID]
				set[s.ID] = struct{}{}
				return nil
			},
			undo: func() { delete(b.adapterServices[s.AdapterID], s.ID) },
		},
	)
	if err != nil {
		return err
	}
	for t := range s.Tags {
		b.tags.addService(t, s.ID)
	}
	if b.metrics != nil {
		b.metrics.ServiceRegistered()
	}
	return nil
}

// RemoveService cascades onto features and notifies watchers, then
// closes the affected adapter watch guards outside the actor loop.
func (b *Backend) RemoveService(id ServiceID) error {
	var err error
	var guards []AdapterWatchGuard
	b.submit(func() {
		if _, ok := b.services[id]; !ok {
			err = cmn.NewNoSuchServiceError(id.String())
			return
		}
		guards = b.removeService(id)
	})
	closeGuardsBestEffort(guards)
	return err
}

func (b *Backend) removeService(id ServiceID) []AdapterWatchGuard {
	svc, ok := b.services[id]
	if !ok {
		return nil
	}
	var collected []AdapterWatchGuard
	featureIDs := make([]FeatureID, 0, len(svc.Features))
	for fid := range svc.Features {
		featureIDs = append(featureIDs, fid)
	}
	for _, fid := range featureIDs {
		collected = append(collected, b.removeFeature(fid)...)
	}
	for t := range svc.Tags {
		b.tags.removeService(t, id)
	}
	delete(b.services, id)
	if set, ok := b.adapterServices[svc.AdapterID]; ok {
		delete(set, id)
	}
	if b.metrics != nil {
		b.metrics.ServiceRemoved()
	}
	return collected
}

// AddFeature registers f, then re-evaluates every active watch against
// it. Any resulting adapter registrations are installed via the same
// two-phase pattern as RegisterWatch: the actor only ever decides WHAT
// to install, never performs the adapter call itself.
func (b *Backend) AddFeature(f *Feature) error {
	var err error
	var pending []pendingInstall
	b.submit(func() { pending, err = b.addFeature(f) })
	if err == nil {
		b.installWatches(pending)
	}
	return err
}

func (b *Backend) addFeature(f *Feature) ([]pendingInstall, error) {
	svc, ok := b.services[f.ServiceID]
	if !ok {
		return nil, cmn.NewNoSuchServiceError(f.ServiceID.String())
	}
	if !svc.AdapterID.Equal(f.AdapterID) {
		return nil, cmn.NewConflictingAdapterError(f.ID.String(), svc.AdapterID.String(), f.AdapterID.String())
	}
	if _, exists := b.features[f.ID]; exists {
		return nil, cmn.NewDuplicateFeatureError(f.ID.String())
	}
	b.features[f.ID] = f
	svc.Features[f.ID] = struct{}{}
	for t := range f.Tags {
		b.tags.addFeature(t, f.ID)
	}
	if b.metrics != nil {
		b.metrics.FeatureRegistered()
	}
	return b.reconcileNewFeature(f.ID, f, svc), nil
}

// RemoveFeature cancels watches referencing it (FeatureRemoved), then
// closes the affected adapter guards outside the actor loop.
func (b *Backend) RemoveFeature(id FeatureID) error {
	var err error
	var guards []AdapterWatchGuard
	b.submit(func() {
		if _, ok := b.features[id]; !ok {
			err = cmn.NewNoSuchFeatureError(id.String())
			return
		}
		guards = b.removeFeature(id)
	})
	closeGuardsBestEffort(guards)
	return err
}

func (b *Backend) removeFeature(id FeatureID) []AdapterWatchGuard {
	f, ok := b.features[id]
	if !ok {
		return nil
	}
	if svc, ok := b.services[f.ServiceID]; ok {
		delete(svc.Features, id)
	}
	for t := range f.Tags {
		b.tags.removeFeature(t, id)
	}
	delete(b.features, id)
	var collected []AdapterWatchGuard
	for _, wid := range b.featureWatchers[id] {
		sub, ok := b.watchers[wid]
		if !ok {
			continue
		}
		if g, ok := sub.adapterGuards[id]; ok {
			collected = append(collected, g)
			delete(sub.adapterGuards, id)
		}
		delete(sub.inRange, id)
		sub.emit(Event{Kind: EventFeatureRemoved, Feature: id})
	}
	delete(b.featureWatchers, id)
	if b.metrics != nil {
		b.metrics.FeatureRemoved()
	}
	return collected
}

func closeGuardsBestEffort(guards []AdapterWatchGuard) {
	for _, g := range guards {
		if g == nil {
			continue
		}
		if err := g.Close(); err != nil {
			glog.Warningf("adapter watch guard close: %v", err)
		}
	}
}

////////////
// Tagging //
////////////

// AddServiceTags applies tags to every service currently matching sel.
// Not live: spec.md §9 — entities registered afterward are unaffected.
func (b *Backend) AddServiceTags(sel ServiceSelector, tagsToAdd []TagID) (int, error) {
	var n int
	b.submit(func() {
		for _, svc := range b.services {
			if !sel.Matches(svc) {
				continue
			}
			for _, t := range tagsToAdd {
				if !svc.HasTag(t) {
					svc.Tags[t] = struct{}{}
					b.tags.addService(t, svc.ID)
				}
			}
			n++
		}
	})
	return n, nil
}

func (b *Backend) RemoveServiceTags(sel ServiceSelector, tagsToRemove []TagID) (int, error) {
	var n int
	b.submit(func() {
		for _, svc := range b.services {
			if !sel.Matches(svc) {
				continue
			}
			for _, t := range tagsToRemove {
				if svc.HasTag(t) {
					delete(svc.Tags, t)
					b.tags.removeService(t, svc.ID)
				}
			}
			n++
		}
	})
	return n, nil
}

func (b *Backend) AddFeatureTags(sel FeatureSelector, tagsToAdd []TagID) (int, error) {
	var n int
	b.submit(func() {
		for _, f := range b.features {
			svc := b.services[f.ServiceID]
			if !sel.Matches(f, svc) {
				continue
			}
			for _, t := range tagsToAdd {
				if !f.HasTag(t) {
					f.Tags[t] = struct{}{}
					b.tags.addFeature(t, f.ID)
				}
			}
			n++
		}
	})
	return n, nil
}

func (b *Backend) RemoveFeatureTags(sel FeatureSelector, tagsToRemove []TagID) (int, error) {
	var n int
	b.submit(func() {
		for _, f := range b.features {
			svc := b.services[f.ServiceID]
			if !sel.Matches(f, svc) {
				continue
			}
			for _, t := range tagsToRemove {
				if f.HasTag(t) {
					delete(f.Tags, t)
					b.tags.removeFeature(t, f.ID)
				}
			}
			n++
		}
	})
	return n, nil
}

/////////////
// Queries //
/////////////

// GetServices scans the registry for matches. When sel requires tags, the
// cuckoo pre-filter (SPEC_FULL §4.1.5) is consulted first: a definite miss
// on any required tag skips the scan outright.
func (b *Backend) GetServices(sel ServiceSelector) []ServiceDescription {
	var out []ServiceDescription
	b.submit(func() {
		for t := range sel.Tags {
			if !b.tags.mightHaveTag(t) {
				return
			}
		}
		for _, svc := range b.services {
			if sel.Matches(svc) {
				out = append(out, describeService(svc))
			}
		}
	})
	return out
}

func (b *Backend) GetFeatures(sel FeatureSelector) []FeatureDescription {
	var out []FeatureDescription
	b.submit(func() {
		for t := range sel.Tags {
			if !b.tags.mightHaveTag(t) {
				return
			}
		}
		for _, f := range b.features {
			svc := b.services[f.ServiceID]
			if sel.Matches(f, svc) {
				out = append(out, describeFeature(f))
			}
		}
	})
	return out
}
