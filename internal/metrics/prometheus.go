package metrics

import (
	"fmt"
	"sort"
	"strings"
)

const namespace = "noanswer"

// FormatPrometheus renders snap in the Prometheus text format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func FormatPrometheus(snap Snapshot) string {
	var sb strings.Builder

	writeHeader(&sb, "uptime_seconds", "gauge", "Time since relayd started")
	fmt.Fprintf(&sb, "%s_uptime_seconds %d\n\n", namespace, snap.Uptime)

	writeHeader(&sb, "http_requests_total", "counter", "HTTP requests by route and status code")
	reqs := append([]RequestCount(nil), snap.Requests...)
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].Route != reqs[j].Route {
			return reqs[i].Route < reqs[j].Route
		}
		return reqs[i].Code < reqs[j].Code
	})
	for _, rc := range reqs {
		fmt.Fprintf(&sb, "%s_http_requests_total{route=\"%s\",code=\"%s\"} %d\n", namespace, escapeLabel(rc.Route), rc.Code, rc.Count)
	}
	sb.WriteString("\n")

	writeHeader(&sb, "http_request_duration_ms_total", "counter", "Total time spent serving each route, streams included")
	for _, route := range sortedKeys(snap.DurationMs) {
		fmt.Fprintf(&sb, "%s_http_request_duration_ms_total{route=\"%s\"} %d\n", namespace, escapeLabel(route), snap.DurationMs[route])
	}
	sb.WriteString("\n")

	writeHeader(&sb, "http_requests_in_flight", "gauge", "Requests currently being served")
	fmt.Fprintf(&sb, "%s_http_requests_in_flight %d\n\n", namespace, snap.InFlight)

	writeHeader(&sb, "rate_limit_hits_total", "counter", "Calls rejected by the per-client limiter")
	for _, endpoint := range sortedKeys(snap.RateLimitHits) {
		fmt.Fprintf(&sb, "%s_rate_limit_hits_total{endpoint=\"%s\"} %d\n", namespace, escapeLabel(endpoint), snap.RateLimitHits[endpoint])
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeHeader(sb *strings.Builder, name, kind, help string) {
	fmt.Fprintf(sb, "# HELP %s_%s %s\n", namespace, name, help)
	fmt.Fprintf(sb, "# TYPE %s_%s %s\n", namespace, name, kind)
}

func escapeLabel(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
