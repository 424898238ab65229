package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mikey-austin/kodi_playlists/internal/ports"
)

type instrumentedCaller struct {
	next ports.ServiceCaller
}

// InstrumentCaller records count and latency of every call made through
// next, labelled by JSON-RPC method.
func InstrumentCaller(next ports.ServiceCaller) ports.ServiceCaller {
	return instrumentedCaller{next: next}
}

func (c instrumentedCaller) CallService(ctx context.Context, domain string, service string, data map[string]any) (json.RawMessage, error) {
	method := methodLabel(domain, service, data)
	start := time.Now()
	resp, err := c.next.CallService(ctx, domain, service, data)
	ServiceCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	ServiceCallsTotal.WithLabelValues(method, StatusOf(err)).Inc()
	return resp, err
}

func methodLabel(domain string, service string, data map[string]any) string {
	if method, ok := data["method"].(string); ok && method != "" {
		return method
	}
	return domain + "." + service
}
