package telemetry

import (
	"fmt"
	"sync"
)

// Report is a single call recorded by RecorderAPI.
type Report struct {
	Kind   string
	ID     string
	Params []any
	Count  int64
}

// RecorderAPI keeps every report in memory so that tests can assert on
// what a component reported.
type RecorderAPI struct {
	mutex   sync.Mutex
	Reports []Report
}

func (r *RecorderAPI) add(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Reports = append(r.Reports, report)
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: "broken", ID: id, Params: params})
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: "warning", ID: id, Params: params})
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: "debug", ID: msg, Params: params})
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.add(Report{Kind: "count", ID: id, Count: count})
}

// Find returns the reports of the given kind, in order.
func (r *RecorderAPI) Find(kind string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.Reports {
		if report.Kind == kind {
			out = append(out, report)
		}
	}
	return out
}

func (r *RecorderAPI) String() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return fmt.Sprint(r.Reports)
}
