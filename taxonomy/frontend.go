package taxonomy

// Frontend is the thin, cloneable client handle spec.md §4.2 describes:
// every method just forwards to the shared Backend (itself already
// message-passing under the hood via submit), so copying a Frontend by
// value is cheap and safe to hand to any number of goroutines.
type Frontend struct {
	backend *Backend
}

func NewFrontend(b *Backend) Frontend { return Frontend{backend: b} }

func (fe Frontend) AddAdapter(a Adapter) error    { return fe.backend.AddAdapter(a) }
func (fe Frontend) RemoveAdapter(id AdapterID) error { return fe.backend.RemoveAdapter(id) }

func (fe Frontend) AddService(s *Service) error      { return fe.backend.AddService(s) }
func (fe Frontend) RemoveService(id ServiceID) error { return fe.backend.RemoveService(id) }

func (fe Frontend) AddFeature(f *Feature) error      { return fe.backend.AddFeature(f) }
func (fe Frontend) RemoveFeature(id FeatureID) error { return fe.backend.RemoveFeature(id) }

func (fe Frontend) AddServiceTags(sel ServiceSelector, tags []TagID) (int, error) {
	return fe.backend.AddServiceTags(sel, tags)
}
func (fe Frontend) RemoveServiceTags(sel ServiceSelector, tags []TagID) (int, error) {
	return fe.backend.RemoveServiceTags(sel, tags)
}
func (fe Frontend) AddFeatureTags(sel FeatureSelector, tags []TagID) (int, error) {
	return fe.backend.AddFeatureTags(sel, tags)
}
func (fe Frontend) RemoveFeatureTags(sel FeatureSelector, tags []TagID) (int, error) {
	return fe.backend.RemoveFeatureTags(sel, tags)
}

func (fe Frontend) GetServices(sel ServiceSelector) []ServiceDescription {
	return fe.backend.GetServices(sel)
}
func (fe Frontend) GetFeatures(sel FeatureSelector) []FeatureDescription {
	return fe.backend.GetFeatures(sel)
}

func (fe Frontend) PlaceMethodCall(method Method, requests []MethodRequest, principal Principal) (map[FeatureID]MethodResult, error) {
	return fe.backend.PlaceMethodCall(method, requests, principal)
}

// WatchHandle is the client-facing half of a registered watch: a channel
// of already-translated {Enter, Exit, FeatureAdded, FeatureRemoved}
// events (spec.md §4.2's "adapts ... into client-facing" requirement —
// the backend already emits Event in this shape, so WatchHandle is a
// direct forward rather than a second translation layer).
type WatchHandle struct {
	guard *WatchGuard
}

func (w WatchHandle) Events() <-chan Event { return w.guard.Events() }
func (w WatchHandle) Close() error         { return w.guard.Close() }

func (fe Frontend) RegisterWatch(targets []WatchTarget, principal Principal) (WatchHandle, error) {
	guard, err := fe.backend.RegisterWatch(targets, principal)
	if err != nil {
		return WatchHandle{}, err
	}
	return WatchHandle{guard: guard}, nil
}
