package librus

import "time"

// Summary is the outcome of a run.
type Summary struct {
	RunID     string
	Transport string
	Started   time.Time
	Finished  time.Time

	// Reached is the last stage completed successfully.
	Reached Stage
	// Target is the stage the run was asked to reach.
	Target   Stage
	Login    LoginOutcome
	Accounts []Account
	Token    string
	Csrf     string
	Cookies  []string
	Probes   []ProbeResult
	// Err is the fatal error that ended the run early, if any.
	Err error
}

func (s Summary) Succeeded() bool {
	return s.Err == nil && s.Reached >= s.Target
}

func (s Summary) ExitCode() int {
	if s.Succeeded() {
		return 0
	}
	return 1
}

func (s Summary) ProbeCounts() (succeeded, failed int) {
	for _, probe := range s.Probes {
		if probe.Ok() {
			succeeded++
			continue
		}
		failed++
	}
	return succeeded, failed
}
