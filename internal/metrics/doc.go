// Package metrics declares the Prometheus collectors exported by kpd and
// the small decorators that feed them.
//
// Collectors register with the default registry through promauto, so the
// HTTP module only has to mount promhttp.Handler to expose them.
package metrics
