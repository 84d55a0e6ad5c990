package librus

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Printer writes the human facing progress of a run.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) Printer {
	if w == nil {
		w = io.Discard
	}
	return Printer{w: w}
}

func (p Printer) Title(title string) {
	fmt.Fprintf(p.w, "%s\n%s\n", title, strings.Repeat("=", len([]rune(title))))
}

func (p Printer) Step(n, total int, title string) {
	heading := fmt.Sprintf("STEP %d/%d: %s", n, total, title)
	fmt.Fprintf(p.w, "\n%s\n%s\n", heading, strings.Repeat("-", len([]rune(heading))))
}

func (p Printer) Ok(format string, args ...any) {
	fmt.Fprintf(p.w, "[ok]   %s\n", fmt.Sprintf(format, args...))
}

func (p Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.w, "[warn] %s\n", fmt.Sprintf(format, args...))
}

func (p Printer) Fail(format string, args ...any) {
	fmt.Fprintf(p.w, "[fail] %s\n", fmt.Sprintf(format, args...))
}

func (p Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, "       %s\n", fmt.Sprintf(format, args...))
}

func (p Printer) Table() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(p.w)
	return t
}

func (p Printer) Accounts(accounts []Account) {
	t := p.Table()
	t.AppendHeader(table.Row{"#", "Student", "Login", "ID", "Token"})
	for i, account := range accounts {
		t.AppendRow(table.Row{
			i + 1,
			account.StudentName,
			account.Login,
			account.ID.String(),
			MaskToken(account.AccessToken, 20),
		})
	}
	t.Render()
}

func (p Printer) Messages(messages []Message) {
	t := p.Table()
	t.AppendHeader(table.Row{"#", "Subject", "Sender", "Sent"})
	for i, message := range messages {
		t.AppendRow(table.Row{i + 1, message.Subject, message.Sender.Name, message.SendDate})
	}
	t.Render()
}

func (p Printer) Summary(summary Summary) {
	fmt.Fprintln(p.w)
	p.Title("SUMMARY")

	t := p.Table()
	t.AppendHeader(table.Row{"Endpoint", "Status", "Elements", "Result"})
	for _, probe := range summary.Probes {
		result := "ok"
		if !probe.Ok() {
			result = probe.Err.Error()
		}
		t.AppendRow(table.Row{probe.Endpoint, probe.Status, probe.Count, result})
	}
	succeeded, failed := summary.ProbeCounts()
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d ok", succeeded), fmt.Sprintf("%d failed", failed)})
	if len(summary.Probes) > 0 {
		t.Render()
	}

	fmt.Fprintf(p.w, "transport: %s\n", summary.Transport)
	fmt.Fprintf(p.w, "reached:   %s\n", summary.Reached)
	if summary.Err != nil {
		p.Fail("%s", summary.Err.Error())
		return
	}
	p.Ok("completed in %s", summary.Finished.Sub(summary.Started).Round(time.Millisecond))
}
