package taxonomy

// Exactly is the three-point lattice spec.md §3 describes for id-valued
// selector fields: Always matches everything, Never matches nothing, and
// Exactly(v) matches only v. And() forms the lattice meet:
//
//	Always.and(x)                  == x
//	Never.and(x)                   == Never
//	Exactly(a).and(Exactly(a))     == Exactly(a)
//	Exactly(a).and(Exactly(b)), a≠b == Never
type Exactly[T comparable] struct {
	kind exactlyKind
	v    T
}

type exactlyKind uint8

const (
	exactlyAlways exactlyKind = iota
	exactlyNever
	exactlyValue
)

func Always[T comparable]() Exactly[T] { return Exactly[T]{kind: exactlyAlways} }
func Never[T comparable]() Exactly[T]  { return Exactly[T]{kind: exactlyNever} }
func ExactlyOf[T comparable](v T) Exactly[T] {
	return Exactly[T]{kind: exactlyValue, v: v}
}

func (e Exactly[T]) IsAlways() bool { return e.kind == exactlyAlways }
func (e Exactly[T]) IsNever() bool  { return e.kind == exactlyNever }
func (e Exactly[T]) Value() (T, bool) {
	if e.kind == exactlyValue {
		return e.v, true
	}
	var zero T
	return zero, false
}

func (e Exactly[T]) And(o Exactly[T]) Exactly[T] {
	switch {
	case e.kind == exactlyNever || o.kind == exactlyNever:
		return Never[T]()
	case e.kind == exactlyAlways:
		return o
	case o.kind == exactlyAlways:
		return e
	default: // both exactlyValue
		if e.v == o.v {
			return e
		}
		return Never[T]()
	}
}

func (e Exactly[T]) Matches(v T) bool {
	switch e.kind {
	case exactlyAlways:
		return true
	case exactlyNever:
		return false
	default:
		return e.v == v
	}
}

// ServiceSelector is a conjunction of optional constraints over services:
// id, tag subset, owning adapter. A zero-value ServiceSelector (all
// Exactly fields Always, no required tags) matches every service —
// spec.md §8's "S.and(Selector::default()) ≡ S" round-trip property.
type ServiceSelector struct {
	ID      Exactly[ServiceID]
	Adapter Exactly[AdapterID]
	Tags    map[TagID]struct{} // required subset; empty == no constraint
}

func (s ServiceSelector) And(o ServiceSelector) ServiceSelector {
	merged := ServiceSelector{
		ID:      s.ID.And(o.ID),
		Adapter: s.Adapter.And(o.Adapter),
		Tags:    make(map[TagID]struct{}, len(s.Tags)+len(o.Tags)),
	}
	for t := range s.Tags {
		merged.Tags[t] = struct{}{}
	}
	for t := range o.Tags {
		merged.Tags[t] = struct{}{}
	}
	return merged
}

func (s ServiceSelector) Matches(svc *Service) bool {
	if s.ID.IsNever() || s.Adapter.IsNever() {
		return false
	}
	if !s.ID.Matches(svc.ID) {
		return false
	}
	if !s.Adapter.Matches(svc.AdapterID) {
		return false
	}
	for t := range s.Tags {
		if !svc.HasTag(t) {
			return false
		}
	}
	return true
}

func WithServiceID(id ServiceID) ServiceSelector {
	return ServiceSelector{ID: ExactlyOf(id), Adapter: Always[AdapterID](), Tags: nil}
}

func WithAdapterID(id AdapterID) ServiceSelector {
	return ServiceSelector{ID: Always[ServiceID](), Adapter: ExactlyOf(id), Tags: nil}
}

// FeatureSelector additionally constrains by implements-URI and by a
// nested ServiceSelector over the owning service (spec.md §3: "parent
// service").
type FeatureSelector struct {
	ID         Exactly[FeatureID]
	Adapter    Exactly[AdapterID]
	Implements Exactly[ImplementID]
	Parent     *ServiceSelector
	Tags       map[TagID]struct{}
}

func (f FeatureSelector) And(o FeatureSelector) FeatureSelector {
	merged := FeatureSelector{
		ID:         f.ID.And(o.ID),
		Adapter:    f.Adapter.And(o.Adapter),
		Implements: f.Implements.And(o.Implements),
		Tags:       make(map[TagID]struct{}, len(f.Tags)+len(o.Tags)),
	}
	for t := range f.Tags {
		merged.Tags[t] = struct{}{}
	}
	for t := range o.Tags {
		merged.Tags[t] = struct{}{}
	}
	switch {
	case f.Parent == nil:
		merged.Parent = o.Parent
	case o.Parent == nil:
		merged.Parent = f.Parent
	default:
		combined := f.Parent.And(*o.Parent)
		merged.Parent = &combined
	}
	return merged
}

func (f FeatureSelector) Matches(feat *Feature, svc *Service) bool {
	if f.ID.IsNever() || f.Adapter.IsNever() || f.Implements.IsNever() {
		return false
	}
	if !f.ID.Matches(feat.ID) {
		return false
	}
	if !f.Adapter.Matches(feat.AdapterID) {
		return false
	}
	if uri, ok := f.Implements.Value(); ok && !feat.implementsURI(uri) {
		return false
	}
	for t := range f.Tags {
		if !feat.HasTag(t) {
			return false
		}
	}
	if f.Parent != nil && svc != nil && !f.Parent.Matches(svc) {
		return false
	}
	return true
}

func WithFeatureID(id FeatureID) FeatureSelector {
	return FeatureSelector{
		ID:         ExactlyOf(id),
		Adapter:    Always[AdapterID](),
		Implements: Always[ImplementID](),
	}
}

func WithImplements(uri ImplementID) FeatureSelector {
	return FeatureSelector{
		ID:         Always[FeatureID](),
		Adapter:    Always[AdapterID](),
		Implements: ExactlyOf(uri),
	}
}

func WithParentService(sel ServiceSelector) FeatureSelector {
	return FeatureSelector{
		ID:         Always[FeatureID](),
		Adapter:    Always[AdapterID](),
		Implements: Always[ImplementID](),
		Parent:     &sel,
	}
}
