package taxonomy

// WatchID identifies a registered watch subscription. Unlike
// Service/Adapter/Feature/Tag/Implements ids, spec.md does not list watch
// as one of the phantom-typed id categories, so it stays a plain string
// minted by the hub itself.
type WatchID string

func newWatchID() WatchID { return WatchID(NewGeneratedID[adapterCat]().String()) }

// predKind mirrors Exactly's three-point lattice but specialized to
// watch predicates, where the "value" case is a Range rather than a bare
// comparable (spec.md §3: "per-selector predicate: Always|Never|Exactly(value)").
type predKind uint8

const (
	predAlways predKind = iota
	predNever
	predExactly
)

type Predicate struct {
	kind predKind
	rng  Range
}

func PredAlways() Predicate          { return Predicate{kind: predAlways} }
func PredNever() Predicate           { return Predicate{kind: predNever} }
func PredExactly(r Range) Predicate  { return Predicate{kind: predExactly, rng: r} }

// WatchTarget pairs a feature selector with the predicate applied to
// every feature it resolves to.
type WatchTarget struct {
	Selector  FeatureSelector
	Predicate Predicate
}

// EventKind discriminates the four client-facing watch events spec.md
// §4.2 and §6 define.
type EventKind uint8

const (
	EventEnter EventKind = iota
	EventExit
	EventFeatureAdded
	EventFeatureRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventEnter:
		return "Enter"
	case EventExit:
		return "Exit"
	case EventFeatureAdded:
		return "FeatureAdded"
	case EventFeatureRemoved:
		return "FeatureRemoved"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind    EventKind
	Feature FeatureID
	Value   Value // zero for FeatureAdded/FeatureRemoved
}

// subscription is the back-end's bookkeeping for one registered watch.
// Only the actor goroutine touches its fields.
type subscription struct {
	id          WatchID
	targets     []WatchTarget
	events      chan Event
	adapterGuards map[FeatureID]AdapterWatchGuard
	// inRange tracks, per matched feature, whether the most recent typed
	// value was inside that feature's Exactly range — the edge-trigger
	// state spec.md §4.1.3 describes.
	inRange map[FeatureID]bool
	closed  bool
}

func newSubscription(id WatchID, targets []WatchTarget) *subscription {
	return &subscription{
		id:            id,
		targets:       targets,
		events:        make(chan Event, 64),
		adapterGuards: make(map[FeatureID]AdapterWatchGuard),
		inRange:       make(map[FeatureID]bool),
	}
}

func (s *subscription) emit(e Event) {
	select {
	case s.events <- e:
	default:
		// Slow consumer: drop rather than block the caller that
		// triggered this event. A production client is expected to
		// drain Events promptly; this only protects the hub itself.
	}
}

// predicateFor returns the predicate a matched feature was registered
// under, the first target whose selector matched it (targets are not
// expected to overlap in practice, but first-match is a defined order).
func (s *subscription) predicateFor(featureID FeatureID, feat *Feature, svc *Service) (Predicate, bool) {
	for _, t := range s.targets {
		if t.Selector.Matches(feat, svc) {
			return t.Predicate, true
		}
	}
	return Predicate{}, false
}

// WatchGuard is returned by RegisterWatch. Closing it cancels the
// subscription: the back-end releases its indices and the owning
// adapters are notified via their own guards' Close (spec.md §4.1.3
// step 6, §5 cancellation guarantee).
type WatchGuard struct {
	id      WatchID
	backend *Backend
	events  chan Event
	closed  bool
}

func (g *WatchGuard) Events() <-chan Event { return g.events }

func (g *WatchGuard) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	return g.backend.cancelWatch(g.id)
}
