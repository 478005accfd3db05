package metrics

// WatcherMetrics holds the daemon's event-loop counters.
type WatcherMetrics struct {
	registry *Registry

	EventsTotal         *Counter
	EventsFiltered      *Counter
	EventsDuplicate     *Counter
	PushesTotal         *Counter
	PushFailures        *Counter
	DismissesTotal      *Counter
	DismissesSuppressed *Counter

	WatchedDirs *Gauge

	MutateDuration *Histogram
}

// NewWatcherMetrics registers the watcher metrics in registry, or in a fresh
// "glance" registry when registry is nil.
func NewWatcherMetrics(registry *Registry) *WatcherMetrics {
	if registry == nil {
		registry = NewRegistry("glance")
	}
	return &WatcherMetrics{
		registry: registry,

		EventsTotal:         registry.Counter("events_total", "Filesystem events received"),
		EventsFiltered:      registry.Counter("events_filtered_total", "Events dropped by kind, name or file type"),
		EventsDuplicate:     registry.Counter("events_duplicate_total", "Events suppressed by the dedup filter"),
		PushesTotal:         registry.Counter("pushes_total", "Entries pushed to the history"),
		PushFailures:        registry.Counter("push_failures_total", "History pushes that failed"),
		DismissesTotal:      registry.Counter("dismisses_total", "Dismiss notifications fired"),
		DismissesSuppressed: registry.Counter("dismisses_suppressed_total", "Dismisses skipped while an overlay was active"),

		WatchedDirs: registry.Gauge("watched_dirs", "Directories currently registered"),

		MutateDuration: registry.Histogram("mutate_duration_seconds", "Time spent in Store.Mutate", nil),
	}
}

// Registry returns the underlying registry.
func (m *WatcherMetrics) Registry() *Registry {
	return m.registry
}
