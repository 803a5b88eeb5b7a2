// Package observability holds the opt-in diagnostics toggles of the server.
package observability

// Config captures observability toggles that wire into the HTTP surface.
type Config struct {
	// EnablePprofTrace mounts net/http/pprof under /debug/pprof/.
	EnablePprofTrace bool
	// DisableRuntimeMetrics drops the Go runtime and process collectors from
	// /metrics, leaving only navbridge series.
	DisableRuntimeMetrics bool
}
