// Package taxonomy implements the hub's adapter/service/feature registry:
// a typed, tag-indexed directory with a selector query language and a
// live watch-subscription engine, all serialized through a single
// back-end actor.
/*
 * Copyright (c) 2018-2026, Vesper Home Hub Authors. All rights reserved.
 */
package taxonomy

import (
	"sync/atomic"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// idABC mirrors the teacher's uuidABC alphabet (cmn.shortid.go):
// deliberately avoids characters that collide with path or URL
// separators used elsewhere in the wire formats.
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

// Category is a phantom type parameter distinguishing the five id
// namespaces (service, adapter, feature, tag, implements-URI) so that an
// AdapterID can never be passed where a FeatureID is expected, without
// paying for a distinct concrete type per namespace at runtime.
type Category interface {
	category() string
}

type (
	serviceCat   struct{}
	adapterCat   struct{}
	featureCat   struct{}
	tagCat       struct{}
	implementCat struct{}
)

func (serviceCat) category() string   { return "service" }
func (adapterCat) category() string   { return "adapter" }
func (featureCat) category() string   { return "feature" }
func (tagCat) category() string       { return "tag" }
func (implementCat) category() string { return "implements" }

// ID is an opaque, interned string identifier parameterized by category.
// It is cheap to clone, hash, and compare — mirrors cluster.Snode's
// DaemonID in the teacher, generalized from "one entity kind" to any of
// the five categories. Deliberately a single comparable string field (no
// cached digest alongside it): two ID values are == exactly when their
// string forms are equal, which lets ID[C] be used directly as a map key
// and in generic Exactly[T comparable] selectors without a caching field
// that could desync two logically-equal copies.
type ID[C Category] struct {
	value string
}

// NewID wraps an adapter-supplied or externally-known string as an ID.
// Adapters mint their own service/feature ids; the hub only mints ids for
// entities it creates itself (see NewGeneratedID).
func NewID[C Category](value string) ID[C] {
	return ID[C]{value: value}
}

func (id ID[C]) String() string { return id.value }
func (id ID[C]) IsZero() bool   { return id.value == "" }

// Digest returns an xxhash64 digest of the id's string form, the same
// role Snode.Digest() plays in the teacher: fast bucketing for the
// tag-index and cuckoo-filter membership keys. Computed fresh each call
// rather than cached on the value, so it can never drift from Equal/==.
func (id ID[C]) Digest() uint64 {
	return xxhash.ChecksumString64S(id.value, 0)
}

func (id ID[C]) Equal(other ID[C]) bool { return id.value == other.value }

type (
	ServiceID   = ID[serviceCat]
	AdapterID   = ID[adapterCat]
	FeatureID   = ID[featureCat]
	TagID       = ID[tagCat]
	ImplementID = ID[implementCat]
)

// Per-category constructors. The marker types (serviceCat, etc.) are
// unexported, so NewID's type parameter can't be named from outside this
// package — these are the exported entry points callers actually use.
func NewServiceID(value string) ServiceID     { return NewID[serviceCat](value) }
func NewAdapterID(value string) AdapterID     { return NewID[adapterCat](value) }
func NewFeatureID(value string) FeatureID     { return NewID[featureCat](value) }
func NewTagID(value string) TagID             { return NewID[tagCat](value) }
func NewImplementID(value string) ImplementID { return NewID[implementCat](value) }

func NewGeneratedServiceID() ServiceID { return NewGeneratedID[serviceCat]() }
func NewGeneratedFeatureID() FeatureID { return NewGeneratedID[featureCat]() }

var (
	genSID    *shortid.Shortid
	genTie    int32
	genSIDSet int32
)

// InitIDGenerator seeds the short-id generator used by NewGeneratedID.
// Call once at process start; safe to skip in tests that only use
// caller-supplied ids.
func InitIDGenerator(seed uint64) {
	genSID = shortid.MustNew(4, idABC, seed)
	atomic.StoreInt32(&genSIDSet, 1)
}

// NewGeneratedID mints a fresh, human-readable id in the given category,
// the way the hub names entities it creates itself (e.g. watch ids)
// rather than entities named by an adapter.
func NewGeneratedID[C Category]() ID[C] {
	if atomic.LoadInt32(&genSIDSet) == 0 {
		InitIDGenerator(1)
	}
	return ID[C]{value: genSID.MustGenerate()}
}

// GenTieBreaker produces a short, rotating three-character disambiguator,
// mirroring the teacher's GenTie(). No code in the module calls it.
func GenTieBreaker() string {
	tie := atomic.AddInt32(&genTie, 1)
	b0 := idABC[tie&0x3f]
	b1 := idABC[-tie&0x3f]
	b2 := idABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
