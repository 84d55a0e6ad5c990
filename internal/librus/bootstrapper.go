package librus

import (
	"context"
	"fmt"
	"io"
	"librus-probe/internal/components/assert"
	"librus-probe/internal/components/chrono"
	"librus-probe/internal/components/telemetry"
	"librus-probe/lib/htmlutil"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/librus")

const (
	report_bootstrapper_check_reachability = "bootstrapper.check-reachability"
	report_bootstrapper_fetch_csrf         = "bootstrapper.fetch-csrf"
	report_bootstrapper_submit_login       = "bootstrapper.submit-login"
	report_bootstrapper_fetch_bearer       = "bootstrapper.fetch-bearer"
	report_bootstrapper_probe              = "bootstrapper.probe"
	report_bootstrapper_probes_succeeded   = "bootstrapper.probes-succeeded"
	report_bootstrapper_probes_failed      = "bootstrapper.probes-failed"
	report_bootstrapper_fetch_messages     = "bootstrapper.fetch-messages"
)

type BootstrapperOptions struct {
	Transport   Transport
	Endpoints   []string
	StrictLogin bool
	// Timeout bounds each transport call, 30 seconds when zero.
	Timeout time.Duration
	Output  io.Writer
	Clock   chrono.API
	// RunID labels every run of this bootstrapper. A fresh uuid is used for
	// each run when empty.
	RunID string
}

// Bootstrapper walks a Transport through reachability, csrf, login, bearer
// acquisition and endpoint probes, stopping at the first fatal failure.
type Bootstrapper struct {
	transport   Transport
	endpoints   []string
	strictLogin bool
	timeout     time.Duration
	out         Printer
	clock       chrono.API
	runID       string
	tel         telemetry.API
}

func NewBootstrapper(opts BootstrapperOptions, tel telemetry.API) *Bootstrapper {
	assert.NotNil(opts.Transport)
	assert.NotNil(opts.Clock)
	assert.NotNil(tel)

	endpoints := opts.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Bootstrapper{
		transport:   opts.Transport,
		endpoints:   endpoints,
		strictLogin: opts.StrictLogin,
		timeout:     timeout,
		out:         NewPrinter(opts.Output),
		clock:       opts.Clock,
		runID:       opts.RunID,
		tel:         telemetry.NewScopedAPI("librus", tel),
	}
}

func (b *Bootstrapper) Printer() Printer {
	return b.out
}

// Run executes the whole pipeline.
func (b *Bootstrapper) Run(ctx context.Context, creds Credentials) Summary {
	return b.RunUntil(ctx, creds, StageProbed)
}

type step struct {
	stage Stage
	title string
	run   func(ctx context.Context, creds Credentials, summary *Summary) error
}

// RunUntil executes the pipeline up to and including the step that reaches
// `target`.
func (b *Bootstrapper) RunUntil(ctx context.Context, creds Credentials, target Stage) Summary {
	assert.True(target > StageStart && target <= StageProbed, "run target must be a pipeline stage")

	ctx, span := tracer.Start(ctx, "bootstrapper:Run")
	defer span.End()

	runID := b.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := Summary{
		RunID:     runID,
		Transport: b.transport.Name(),
		Started:   b.clock.Now(),
		Reached:   StageStart,
		Target:    target,
	}
	span.SetAttributes(
		attribute.String("run_id", summary.RunID),
		attribute.String("transport", summary.Transport),
	)

	summary.Err = b.execute(ctx, creds, &summary)
	summary.Finished = b.clock.Now()
	if summary.Err != nil {
		span.SetStatus(codes.Error, summary.Err.Error())
	}
	span.SetAttributes(attribute.String("reached", summary.Reached.String()))
	return summary
}

func (b *Bootstrapper) execute(ctx context.Context, creds Credentials, summary *Summary) error {
	if summary.Target >= StageLoggedIn && !creds.Valid() {
		b.out.Fail("%s", ErrMissingCredentials.Error())
		return ErrMissingCredentials
	}

	steps := []step{
		{stage: StageReachable, title: "portal reachability", run: b.checkReachability},
		{stage: StageTokenFetched, title: "csrf token", run: b.fetchCsrf},
		{stage: StageLoggedIn, title: "login", run: b.submitLogin},
		{stage: StageBearerAcquired, title: "bearer token", run: b.fetchBearer},
		{stage: StageProbed, title: "api endpoints", run: b.probeEndpoints},
	}

	total := 0
	for _, s := range steps {
		if s.stage <= summary.Target {
			total++
		}
	}

	b.out.Title(fmt.Sprintf("librus session check (%s)", summary.Transport))
	if creds.Valid() {
		b.out.Info("user: %s", creds.Username)
		b.out.Info("password: %s", creds.MaskedPassword())
	}

	for i, s := range steps {
		if s.stage > summary.Target {
			break
		}
		err := ctx.Err()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConnectivity, err)
		}

		b.out.Step(i+1, total, s.title)
		stepCtx, span := tracer.Start(ctx, "bootstrapper:"+strings.ReplaceAll(s.title, " ", "-"))
		err = s.run(stepCtx, creds, summary)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return err
		}
		span.End()
		summary.Reached = s.stage
	}
	return nil
}

func (b *Bootstrapper) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

func (b *Bootstrapper) printCookies(ctx context.Context, summary *Summary) {
	names := b.transport.CookieNames(ctx)
	summary.Cookies = names
	if len(names) == 0 {
		b.out.Info("cookies: none")
		return
	}
	b.out.Info("cookies: %s", strings.Join(names, ", "))
}

func (b *Bootstrapper) checkReachability(ctx context.Context, _ Credentials, _ *Summary) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	page, err := b.transport.CheckReachability(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrConnectivity, err)
		b.tel.ReportBroken(report_bootstrapper_check_reachability, err)
		b.out.Fail("%s", err.Error())
		return err
	}

	if page.Status != 0 {
		b.out.Ok("portal responded with status %d", page.Status)
	} else {
		b.out.Ok("portal loaded")
	}
	if page.URL != "" {
		b.out.Info("landed on %s", page.URL)
	}
	return nil
}

func (b *Bootstrapper) fetchCsrf(ctx context.Context, _ Credentials, summary *Summary) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	page, err := b.transport.FetchLoginPage(ctx)
	if err != nil {
		err = fmt.Errorf("%w: login page: %w", ErrConnectivity, err)
		b.tel.ReportBroken(report_bootstrapper_fetch_csrf, err)
		b.out.Fail("%s", err.Error())
		return err
	}
	b.out.Info("login page: status %d, %d bytes", page.Status, len(page.Body))

	token, ok := ExtractCsrfToken(page.Body)
	if !ok {
		b.tel.ReportBroken(report_bootstrapper_fetch_csrf, ErrTokenNotFound, "status", page.Status)
		b.out.Fail("%s", ErrTokenNotFound.Error())
		preview := htmlutil.Markdown(page.Body, 500)
		if preview != "" {
			b.out.Info("page preview:\n%s", preview)
		}
		return ErrTokenNotFound
	}

	summary.Csrf = token
	b.out.Ok("csrf token: %s", MaskToken(token, 20))
	b.printCookies(ctx, summary)
	return nil
}

func (b *Bootstrapper) submitLogin(ctx context.Context, creds Credentials, summary *Summary) error {
	assert.NotEmptyStr(summary.Csrf)

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	res, err := b.transport.SubmitLogin(ctx, creds, summary.Csrf)
	if err != nil {
		err = fmt.Errorf("%w: login request: %w", ErrConnectivity, err)
		b.tel.ReportBroken(report_bootstrapper_submit_login, err)
		b.out.Fail("%s", err.Error())
		return err
	}

	outcome := ClassifyLogin(res)
	summary.Login = outcome
	switch outcome {
	case LoginRedirected:
		if res.Browser {
			b.out.Ok("left the login page, now at %s", res.URL)
		} else {
			b.out.Ok("redirected (%d) to %s", res.Status, res.Location)
		}
	case LoginAccepted:
		b.tel.ReportWarning(report_bootstrapper_submit_login, "login answered 200 without an error marker")
		b.out.Warn("status 200 with no error marker, assuming success (best-effort check)")
	case LoginRejected:
		reason := RejectionReason(res)
		err := fmt.Errorf("%w: %s", ErrLoginRejected, describeRejection(res, reason))
		b.tel.ReportBroken(report_bootstrapper_submit_login, err)
		b.out.Fail("%s", err.Error())
		return err
	case LoginUnexpected:
		if b.strictLogin {
			err := fmt.Errorf("%w: unexpected status %d", ErrLoginRejected, res.Status)
			b.tel.ReportBroken(report_bootstrapper_submit_login, err)
			b.out.Fail("%s", err.Error())
			return err
		}
		b.tel.ReportWarning(report_bootstrapper_submit_login, "unexpected login status", "status", res.Status)
		b.out.Warn("unexpected status %d, continuing", res.Status)
	}

	b.printCookies(ctx, summary)
	return nil
}

func describeRejection(res LoginResponse, reason string) string {
	switch {
	case reason != "":
		return reason
	case res.Browser:
		return fmt.Sprintf("still on %s", res.URL)
	}
	return "error marker found in response"
}

func (b *Bootstrapper) fetchBearer(ctx context.Context, _ Credentials, summary *Summary) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	fail := func(err error) error {
		b.tel.ReportBroken(report_bootstrapper_fetch_bearer, err)
		b.out.Fail("%s", err.Error())
		return err
	}

	page, err := b.transport.FetchAccounts(ctx)
	if err != nil {
		return fail(fmt.Errorf("%w: accounts request: %w", ErrAccountOrTokenMissing, err))
	}
	if page.Status != 0 && page.Status != 200 {
		return fail(fmt.Errorf("%w: accounts status %d", ErrAccountOrTokenMissing, page.Status))
	}

	accounts, err := ParseAccounts([]byte(page.Body))
	if err != nil {
		return fail(err)
	}
	summary.Accounts = accounts

	b.out.Ok("found %d account(s)", len(accounts))
	b.out.Accounts(accounts)

	token, err := BearerToken(accounts)
	if err != nil {
		return fail(err)
	}
	summary.Token = token
	b.out.Ok("bearer token: %s", MaskToken(token, 30))
	return nil
}

func (b *Bootstrapper) probeEndpoints(ctx context.Context, _ Credentials, summary *Summary) error {
	assert.NotEmptyStr(summary.Token)

	for _, endpoint := range b.endpoints {
		result := b.probe(ctx, endpoint, summary.Token)
		summary.Probes = append(summary.Probes, result)
	}

	succeeded, failed := summary.ProbeCounts()
	b.tel.ReportCount(report_bootstrapper_probes_succeeded, int64(succeeded))
	b.tel.ReportCount(report_bootstrapper_probes_failed, int64(failed))
	return nil
}

func (b *Bootstrapper) probe(ctx context.Context, endpoint, token string) ProbeResult {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	page, err := b.transport.FetchEndpoint(ctx, endpoint, token)
	if err != nil {
		result := ProbeResult{
			Endpoint: endpoint,
			Err:      fmt.Errorf("%w: %s: %w", ErrProbeFailure, endpoint, err),
		}
		b.tel.ReportWarning(report_bootstrapper_probe, result.Err)
		b.out.Fail("%s: %s", endpoint, err.Error())
		return result
	}

	result := EvaluateProbe(endpoint, page)
	if !result.Ok() {
		b.tel.ReportWarning(report_bootstrapper_probe, result.Err)
		b.out.Fail("%s: status %d", endpoint, page.Status)
		return result
	}

	b.out.Ok("%s: status %d, %d element(s)", endpoint, result.Status, result.Count)
	if len(result.Keys) > 0 {
		b.out.Info("keys: %s", strings.Join(result.Keys, ", "))
	}
	return result
}

// FetchMessages reads the Messages endpoint of a session that already holds
// a bearer token.
func (b *Bootstrapper) FetchMessages(ctx context.Context, summary Summary) ([]Message, error) {
	assert.NotEmptyStr(summary.Token)

	ctx, span := tracer.Start(ctx, "bootstrapper:FetchMessages")
	defer span.End()
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	page, err := b.transport.FetchEndpoint(ctx, MessagesEndpoint, summary.Token)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrProbeFailure, err)
		b.tel.ReportBroken(report_bootstrapper_fetch_messages, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if page.Status != 200 {
		err = fmt.Errorf("%w: %s: status %d", ErrProbeFailure, MessagesEndpoint, page.Status)
		b.tel.ReportBroken(report_bootstrapper_fetch_messages, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	messages, err := ParseMessages([]byte(page.Body))
	if err != nil {
		b.tel.ReportBroken(report_bootstrapper_fetch_messages, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return messages, nil
}
