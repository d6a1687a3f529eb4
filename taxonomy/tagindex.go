package taxonomy

import (
	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// tagIndex maintains tag -> {service-ids, feature-ids} the way spec.md
// §4.1.1 describes ("optional — can be recomputed from scans, but
// indexed for performance"), plus a cuckoo-filter pre-filter
// (SPEC_FULL §4.1.5): a cheap, approximate negative check ("this tag is
// definitely not present anywhere") that lets get_services/get_features
// skip the exact map scan entirely on a miss, at the cost of a rare false
// positive that just falls through to the exact check anyway.
type tagIndex struct {
	services map[TagID]map[ServiceID]struct{}
	features map[TagID]map[FeatureID]struct{}
	filter   *cuckoo.Filter
}

func newTagIndex() *tagIndex {
	return &tagIndex{
		services: make(map[TagID]map[ServiceID]struct{}),
		features: make(map[TagID]map[FeatureID]struct{}),
		filter:   cuckoo.NewFilter(1 << 14),
	}
}

func (ti *tagIndex) addService(tag TagID, id ServiceID) {
	m, ok := ti.services[tag]
	if !ok {
		m = make(map[ServiceID]struct{})
		ti.services[tag] = m
	}
	m[id] = struct{}{}
	ti.filter.Insert(tagKey(tag))
}

func (ti *tagIndex) removeService(tag TagID, id ServiceID) {
	if m, ok := ti.services[tag]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(ti.services, tag)
		}
	}
	ti.maybeDelete(tag)
}

func (ti *tagIndex) addFeature(tag TagID, id FeatureID) {
	m, ok := ti.features[tag]
	if !ok {
		m = make(map[FeatureID]struct{})
		ti.features[tag] = m
	}
	m[id] = struct{}{}
	ti.filter.Insert(tagKey(tag))
}

func (ti *tagIndex) removeFeature(tag TagID, id FeatureID) {
	if m, ok := ti.features[tag]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(ti.features, tag)
		}
	}
	ti.maybeDelete(tag)
}

func (ti *tagIndex) maybeDelete(tag TagID) {
	if _, hasSvc := ti.services[tag]; hasSvc {
		return
	}
	if _, hasFeat := ti.features[tag]; hasFeat {
		return
	}
	ti.filter.Delete(tagKey(tag))
}

// mightHaveTag is the pre-filter check: false is a definite "no", true
// means "maybe — consult the exact index".
func (ti *tagIndex) mightHaveTag(tag TagID) bool {
	return ti.filter.Lookup(tagKey(tag))
}

func tagKey(tag TagID) []byte { return []byte(tag.String()) }
