package librus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type ReportAccount struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	StudentName string `json:"student_name"`
	Token       string `json:"token"`
}

type ReportProbe struct {
	Endpoint string   `json:"endpoint"`
	Status   int      `json:"status"`
	Success  bool     `json:"success"`
	Count    int      `json:"count"`
	Keys     []string `json:"keys,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Report is the JSON document written to `report_path`, tokens are masked.
type Report struct {
	RunID      string          `json:"run_id"`
	Timestamp  string          `json:"timestamp"`
	Transport  string          `json:"transport"`
	Success    bool            `json:"success"`
	Reached    string          `json:"reached"`
	DurationMs int64           `json:"duration_ms"`
	Login      string          `json:"login,omitempty"`
	Bearer     string          `json:"bearer,omitempty"`
	Accounts   []ReportAccount `json:"accounts"`
	Probes     []ReportProbe   `json:"probes"`
	Cookies    []string        `json:"cookies"`
	Error      string          `json:"error,omitempty"`
}

func NewReport(summary Summary) Report {
	report := Report{
		RunID:      summary.RunID,
		Timestamp:  summary.Started.Format(time.RFC3339),
		Transport:  summary.Transport,
		Success:    summary.Succeeded(),
		Reached:    summary.Reached.String(),
		DurationMs: summary.Finished.Sub(summary.Started).Milliseconds(),
		Accounts:   []ReportAccount{},
		Probes:     []ReportProbe{},
		Cookies:    summary.Cookies,
	}
	if report.Cookies == nil {
		report.Cookies = []string{}
	}
	if summary.Reached >= StageLoggedIn {
		report.Login = summary.Login.String()
	}
	if summary.Token != "" {
		report.Bearer = MaskToken(summary.Token, 10)
	}
	if summary.Err != nil {
		report.Error = summary.Err.Error()
	}

	for _, account := range summary.Accounts {
		report.Accounts = append(report.Accounts, ReportAccount{
			ID:          account.ID.String(),
			Login:       account.Login,
			StudentName: account.StudentName,
			Token:       MaskToken(account.AccessToken, 10),
		})
	}
	for _, probe := range summary.Probes {
		entry := ReportProbe{
			Endpoint: probe.Endpoint,
			Status:   probe.Status,
			Success:  probe.Ok(),
			Count:    probe.Count,
			Keys:     probe.Keys,
		}
		if probe.Err != nil {
			entry.Error = probe.Err.Error()
		}
		report.Probes = append(report.Probes, entry)
	}

	return report
}

func WriteReport(path string, summary Summary) error {
	serialized, err := json.MarshalIndent(NewReport(summary), "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "" {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
	}
	return os.WriteFile(path, serialized, 0644)
}
