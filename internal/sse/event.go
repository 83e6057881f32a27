package sse

import "strings"

// EventDeltas extracts content fragments from one event, in line order.
// Every "data: " line is considered, so an event with several data lines can
// produce several deltas. Lines that fail to parse are reported to warn and
// skipped; they never stop the scan.
func EventDeltas(event string, warn func(line string, err error)) []string {
	var deltas []string
	for _, line := range strings.Split(event, "\n") {
		if !strings.HasPrefix(line, DataPrefix) {
			continue
		}
		data := strings.TrimSpace(line[len(DataPrefix):])
		p, err := ParsePayload(data)
		if err != nil {
			if warn != nil {
				warn(data, err)
			}
			continue
		}
		if p.HasContent() {
			deltas = append(deltas, p.Content)
		}
	}
	return deltas
}
