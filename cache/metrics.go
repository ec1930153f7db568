package cache

// Metrics exposes cache-level observability signals.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Load is recorded for every Loader call; background is true for refreshes.
	Load(background bool)
	LoadError(background bool)
	Change(reason ChangeReason)
	// Size reports Len() after a write. Writers race, so the last value
	// seen may lag behind the store.
	Size(entries int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                {}
func (NoopMetrics) Miss()               {}
func (NoopMetrics) Load(bool)           {}
func (NoopMetrics) LoadError(bool)      {}
func (NoopMetrics) Change(ChangeReason) {}
func (NoopMetrics) Size(int)            {}

var _ Metrics = NoopMetrics{}
