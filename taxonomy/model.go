package taxonomy

// Method enumerates the three payload-carrying adapter dispatch verbs.
// Watch is not one of them: it goes through a separate adapter method
// (register_watch) rather than place_method_call.
type Method uint8

const (
	MethodFetch Method = iota
	MethodSend
	MethodDelete
)

func (m Method) String() string {
	switch m {
	case MethodFetch:
		return "fetch"
	case MethodSend:
		return "send"
	case MethodDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Support describes whether a feature accepts a given method at all and,
// if so, whether a payload is required, optional, or absent.
type Support uint8

const (
	SupportAbsent Support = iota
	SupportRequired
	SupportOptional
)

// Signature describes one direction (fetch/send/delete/watch) of a
// feature's capability: whether it's supported, and which value Kind it
// accepts/returns.
type Signature struct {
	Support Support
	Kind    Kind
}

func (s Signature) Accepts(k Kind) bool {
	return s.Support != SupportAbsent && s.Kind == k
}

// Adapter is the polymorphic capability set spec.md §3 describes:
// components speaking a device protocol and exposing services/features
// through this contract. Modeled as a Go interface — the teacher's
// equivalent is an abstract handle stored by id in cluster.NodeMap, never
// by raw pointer across goroutine boundaries (see backend.go).
type Adapter interface {
	ID() AdapterID
	Name() string
	Vendor() string
	Version() [4]uint32

	// FetchValues/SendValues/DeleteValues receive a batch keyed by
	// feature id (already resolved and grouped by this adapter) and
	// return a same-shaped result map. Adapters must tolerate repeat
	// feature ids within a single batch (spec.md §4.1.2 tie-break).
	FetchValues(request map[FeatureID]Value) (map[FeatureID]FetchResult, error)
	SendValues(request map[FeatureID]Value) (map[FeatureID]error, error)
	DeleteValues(request map[FeatureID]Value) (map[FeatureID]error, error)

	// RegisterWatch installs a watch on one feature with the given
	// predicate and delivers events to sink until the returned guard is
	// released.
	RegisterWatch(feature FeatureID, pred Predicate, sink func(AdapterEvent)) (AdapterWatchGuard, error)
}

// FetchResult is one feature's fetch outcome: either a value or an error
// (e.g. NoSuchFeature when the adapter holds no value for that feature).
type FetchResult struct {
	Value Value
	Err   error
}

// AdapterWatchGuard is released (Close) to cancel a single adapter-side
// watch registration; its Close must be idempotent.
type AdapterWatchGuard interface {
	Close() error
}

// AdapterEvent is what an adapter posts into a watch sink: a new reading
// for the feature it was registered against.
type AdapterEvent struct {
	Feature FeatureID
	Value   Value
}

// Service is a device or logical grouping: container for features.
// Unique by id; created empty, features added/removed dynamically
// (spec.md §3).
type Service struct {
	ID         ServiceID
	AdapterID  AdapterID
	Tags       map[TagID]struct{}
	Properties map[string]string
	Features   map[FeatureID]struct{}
}

func NewService(id ServiceID, adapter AdapterID) *Service {
	return &Service{
		ID:         id,
		AdapterID:  adapter,
		Tags:       make(map[TagID]struct{}),
		Properties: make(map[string]string),
		Features:   make(map[FeatureID]struct{}),
	}
}

func (s *Service) HasTag(tag TagID) bool { _, ok := s.Tags[tag]; return ok }

// Feature (Channel) is a single point of read/write/watch capability on a
// service. Its AdapterID MUST equal its parent service's AdapterID
// (spec.md §3 invariant; enforced in backend.go AddFeature).
type Feature struct {
	ID         FeatureID
	ServiceID  ServiceID
	AdapterID  AdapterID
	Tags       map[TagID]struct{}
	Implements []ImplementID
	Fetch      Signature
	Send       Signature
	Delete     Signature
	Watch      Signature
}

func NewFeature(id FeatureID, service ServiceID, adapter AdapterID) *Feature {
	return &Feature{
		ID:        id,
		ServiceID: service,
		AdapterID: adapter,
		Tags:      make(map[TagID]struct{}),
	}
}

func (f *Feature) HasTag(tag TagID) bool { _, ok := f.Tags[tag]; return ok }

func (f *Feature) implementsURI(uri ImplementID) bool {
	for _, i := range f.Implements {
		if i.Equal(uri) {
			return true
		}
	}
	return false
}

// ServiceDescription / FeatureDescription are the lightweight, snapshot
// descriptions get_services/get_features return — value types, detached
// from the live registry so a caller can't mutate taxonomy state through
// them (spec.md §4.1.2 "snapshot at call time").
type ServiceDescription struct {
	ID         ServiceID
	AdapterID  AdapterID
	Tags       []TagID
	Properties map[string]string
	Features   []FeatureID
}

type FeatureDescription struct {
	ID         FeatureID
	ServiceID  ServiceID
	AdapterID  AdapterID
	Tags       []TagID
	Implements []ImplementID
	Fetch      Signature
	Send       Signature
	Delete     Signature
	Watch      Signature
}

func describeService(s *Service) ServiceDescription {
	d := ServiceDescription{
		ID:         s.ID,
		AdapterID:  s.AdapterID,
		Properties: make(map[string]string, len(s.Properties)),
	}
	for k, v := range s.Properties {
		d.Properties[k] = v
	}
	for t := range s.Tags {
		d.Tags = append(d.Tags, t)
	}
	for f := range s.Features {
		d.Features = append(d.Features, f)
	}
	return d
}

func describeFeature(f *Feature) FeatureDescription {
	d := FeatureDescription{
		ID:         f.ID,
		ServiceID:  f.ServiceID,
		AdapterID:  f.AdapterID,
		Implements: append([]ImplementID(nil), f.Implements...),
		Fetch:      f.Fetch,
		Send:       f.Send,
		Delete:     f.Delete,
		Watch:      f.Watch,
	}
	for t := range f.Tags {
		d.Tags = append(d.Tags, t)
	}
	return d
}
