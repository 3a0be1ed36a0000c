//go:build !gst

package pipeline

// NewAppSrcInjector is unavailable without GStreamer bindings.
func NewAppSrcInjector(_ AppSrcConfig) (Injector, error) {
	return nil, ErrGStreamerUnavailable
}
