package librus

import (
	"encoding/json"
	"fmt"
	"sort"
)

var DefaultEndpoints = []string{"Me", "Schools", "Timetables", "HomeWorks"}

type ProbeResult struct {
	Endpoint string
	Status   int
	// Count is the number of elements found under the endpoint's key, 0
	// when the key is absent.
	Count int
	// Keys holds the top level keys of the payload.
	Keys []string
	Err  error
}

func (p ProbeResult) Ok() bool {
	return p.Err == nil
}

// CountKey is the payload key whose elements are counted for an endpoint.
func CountKey(endpoint string) string {
	if endpoint == "Timetables" {
		return "Timetable"
	}
	return endpoint
}

// CountElements counts the elements under the endpoint's key, a list
// counts its items, any other value present counts as 1.
func CountElements(endpoint string, payload map[string]any) (int, bool) {
	value, ok := payload[CountKey(endpoint)]
	if !ok {
		return 0, false
	}
	if list, isList := value.([]any); isList {
		return len(list), true
	}
	return 1, true
}

// EvaluateProbe turns a raw endpoint response into a ProbeResult.
func EvaluateProbe(endpoint string, page Page) ProbeResult {
	result := ProbeResult{
		Endpoint: endpoint,
		Status:   page.Status,
	}
	if page.Status != 200 {
		result.Err = fmt.Errorf("%w: %s: status %d", ErrProbeFailure, endpoint, page.Status)
		return result
	}

	var payload map[string]any
	err := json.Unmarshal([]byte(page.Body), &payload)
	if err != nil {
		result.Err = fmt.Errorf("%w: %s: invalid json: %s", ErrProbeFailure, endpoint, err.Error())
		return result
	}

	result.Count, _ = CountElements(endpoint, payload)
	for key := range payload {
		result.Keys = append(result.Keys, key)
	}
	sort.Strings(result.Keys)
	return result
}
