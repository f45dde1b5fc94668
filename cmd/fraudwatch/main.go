package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fraud-watch/pkg/alerts"
	"github.com/fraud-watch/pkg/analysis"
	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/config"
	"github.com/fraud-watch/pkg/dashboard"
	"github.com/fraud-watch/pkg/db"
	"github.com/fraud-watch/pkg/export"
	"github.com/fraud-watch/pkg/metrics"
	"github.com/fraud-watch/pkg/monitor"
	"github.com/fraud-watch/pkg/render"
	"github.com/fraud-watch/pkg/reports"
	"github.com/fraud-watch/pkg/selection"
	"github.com/fraud-watch/pkg/session"
	"github.com/fraud-watch/pkg/settings"
	"github.com/fraud-watch/pkg/tui"
)

const usage = `usage: fraudwatch <command> [flags]

commands:
  serve                     run the local dashboard (and scheduled reports)
  login -email -password    sign in
  register -email -password [-name]
  logout
  whoami                    show the signed-in profile
  watch [address]           select the monitored address, or show it
  kpis                      dashboard KPIs for the monitored address
  txs [-level -min-score -q -mixer]
  alerts
  ack <hash>                acknowledge an alert
  resolve <hash>            resolve an alert
  reopen <hash>             reopen an alert
  export [-alerts] <file>   write transactions (or alerts) as CSV
  report [-type -format -from -to]
  templates [-download id]
  jobs
  monthly [-months]         monthly risk breakdown for the monitored address
  apikey [reveal|rotate]
  profile [-name -org -tz]  show or update the account profile
  password -current -new -confirm
  signout-others            end every other session of this account
  notify [name on|off]      show or toggle notification preferences
  tui                       interactive alert feed
`

type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	client   *api.Client
	session  *session.Store
	channel  *selection.Channel
	overlay  *alerts.Overlay
	reports  *reports.Service
	settings *settings.Service
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	store, err := db.NewStore(cfg.StateDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("state store init failed")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx, cfg, store)
	if err := a.dispatch(ctx, os.Args[1], os.Args[2:]); err != nil {
		var authErr *api.AuthError
		if errors.As(err, &authErr) {
			log.Error().Msg(authErr.Error())
		} else {
			log.Error().Err(err).Msg(os.Args[1] + " failed")
		}
		store.Close()
		os.Exit(1)
	}
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
}

func newApp(ctx context.Context, cfg *config.Config, store *db.Store) *app {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.MetricsNamespace, reg)

	client := api.New(cfg.APIBaseURL)
	sess := session.New(client, store)
	sess.Hydrate(ctx)
	client.SetTokenSource(sess)

	ch := selection.NewChannel(store, cfg.SelectionPollInterval)
	return &app{
		cfg:      cfg,
		registry: reg,
		metrics:  m,
		client:   client,
		session:  sess,
		channel:  ch,
		overlay:  alerts.NewOverlay(store, nil, m),
		reports:  reports.NewService(client, ch, store, cfg, m),
		settings: settings.New(client),
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "serve":
		return a.serve(ctx)
	case "login":
		return a.login(ctx, args, false)
	case "register":
		return a.login(ctx, args, true)
	case "logout":
		a.session.Logout()
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "watch":
		return a.watch(args)
	case "kpis":
		return a.kpis(ctx)
	case "txs":
		return a.txs(ctx, args)
	case "alerts":
		return a.alerts(ctx)
	case "ack":
		return a.alertAction(ctx, args, a.overlay.Acknowledge)
	case "resolve":
		return a.alertAction(ctx, args, a.overlay.Resolve)
	case "reopen":
		return a.alertAction(ctx, args, a.overlay.Reopen)
	case "export":
		return a.export(ctx, args)
	case "report":
		return a.report(ctx, args)
	case "templates":
		return a.templates(ctx, args)
	case "jobs":
		jobs, err := a.reports.Jobs(50)
		if err != nil {
			return err
		}
		render.Jobs(os.Stdout, jobs)
		return nil
	case "monthly":
		return a.monthly(ctx, args)
	case "apikey":
		return a.apikey(ctx, args)
	case "profile":
		return a.profile(ctx, args)
	case "password":
		return a.password(ctx, args)
	case "signout-others":
		if err := a.settings.SignOutOthers(ctx); err != nil {
			return err
		}
		fmt.Println("other sessions signed out")
		return nil
	case "notify":
		return a.notify(ctx, args)
	case "tui":
		return a.tui(ctx)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) serve(ctx context.Context) error {
	mon := monitor.New(a.channel, a.client, a.cfg.AnalysisPageSize, a.cfg.AnalysisPollInterval, a.metrics)
	pages := dashboard.Pages{
		Dashboard:    monitor.NewDashboardPage(),
		Transactions: monitor.NewTransactionsPage(),
		Alerts:       monitor.NewAlertsPage(a.overlay),
		Reports:      monitor.NewReportsPage(a.client),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range []monitor.Page{pages.Dashboard, pages.Transactions, pages.Alerts, pages.Reports} {
		mt := mon.Mount(gctx, p)
		g.Go(mt.Wait)
	}

	dash := dashboard.New(a.channel, pages, a.reports, a.registry, a.cfg.DashboardPort)
	g.Go(func() error { return dash.Run(gctx) })

	if a.cfg.ReportSchedule != "" {
		sched, err := reports.NewScheduler(a.reports, a.cfg.ReportSchedule)
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	printSummary(a)
	err := g.Wait()
	log.Info().Msg("goodbye 👋")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printSummary(a *app) {
	line := strings.Repeat("═", 60)
	fmt.Println("\n" + line)
	fmt.Println("  🛡  FRAUD WATCH - RUNNING")
	fmt.Println(line)
	fmt.Printf("  Backend:   %s\n", a.cfg.APIBaseURL)
	if u := a.session.User(); u != nil {
		fmt.Printf("  Signed in: %s\n", u.Email)
	} else {
		fmt.Println("  Signed in: no (run `fraudwatch login`)")
	}
	if sel, ok, _ := a.channel.Current(); ok {
		fmt.Printf("  Watching:  %s (%s)\n", sel.Address, sel.Chain)
	}
	fmt.Printf("  Dashboard: http://localhost:%d\n", a.cfg.DashboardPort)
	if a.cfg.ReportSchedule != "" {
		fmt.Printf("  Reports:   %s (%s, %s)\n", a.cfg.ReportSchedule, a.cfg.ReportType, a.cfg.ReportFormat)
	}
	fmt.Println(line + "\n")
}

func (a *app) login(ctx context.Context, args []string, register bool) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", os.Getenv("FRAUDWATCH_EMAIL"), "account email")
	password := fs.String("password", os.Getenv("FRAUDWATCH_PASSWORD"), "account password")
	name := fs.String("name", "", "full name (register only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("email and password are required")
	}

	var err error
	if register {
		err = a.session.Register(ctx, *email, *password, *name)
	} else {
		err = a.session.Login(ctx, *email, *password)
	}
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", a.session.User().Email)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if !a.session.Authenticated() {
		fmt.Println("not signed in")
		return nil
	}
	p, err := a.settings.Profile(ctx)
	if err != nil {
		return err
	}
	key, err := a.settings.APIKey(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("api key unavailable")
	}
	render.Profile(os.Stdout, p, key)
	return nil
}

func (a *app) watch(args []string) error {
	if len(args) == 0 {
		sel, ok, err := a.channel.Current()
		if err != nil {
			return err
		}
		render.Selection(os.Stdout, sel, ok)
		return nil
	}
	sel, err := a.channel.Publish(strings.Join(args, " "))
	if err != nil {
		return err
	}
	render.Selection(os.Stdout, sel, true)
	return nil
}

// fetch runs a single analysis request for the monitored address.
func (a *app) fetch(ctx context.Context) (*analysis.Result, error) {
	sel, ok, err := a.channel.Current()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reports.ErrNoSelection
	}
	f := analysis.NewFetcher(a.client, a.cfg.AnalysisPageSize, a.cfg.AnalysisPollInterval, a.metrics)
	defer f.Close()
	return f.Fetch(ctx, sel)
}

func (a *app) kpis(ctx context.Context) error {
	res, err := a.fetch(ctx)
	if err != nil {
		return err
	}
	render.Selection(os.Stdout, res.Selection, true)
	render.KPIs(os.Stdout, analysis.ComputeKPIs(res.Items))
	fmt.Println()
	render.Hourly(os.Stdout, analysis.HourlySeries(res.Items))
	return nil
}

func filterFlags(fs *flag.FlagSet) *analysis.Filter {
	f := &analysis.Filter{}
	fs.Func("level", "risk level (low, medium, high)", func(s string) error {
		f.Level = api.RiskLevel(s)
		return nil
	})
	fs.Float64Var(&f.MinScore, "min-score", 0, "minimum risk score")
	fs.StringVar(&f.Query, "q", "", "substring of hash, sender or recipient")
	fs.BoolVar(&f.MixerOnly, "mixer", false, "mixer-involved only")
	return f
}

func (a *app) txs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("txs", flag.ContinueOnError)
	f := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.fetch(ctx)
	if err != nil {
		return err
	}
	items := f.Apply(res.Items)
	render.Transactions(os.Stdout, items)
	fmt.Printf("%d of %d transactions\n", len(items), res.Count)
	return nil
}

func (a *app) buildAlerts(ctx context.Context) ([]alerts.Alert, error) {
	res, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.overlay.SetAddress(res.Selection.Address); err != nil {
		return nil, err
	}
	return a.overlay.Build(res.Items), nil
}

func (a *app) alerts(ctx context.Context) error {
	list, err := a.buildAlerts(ctx)
	if err != nil {
		return err
	}
	render.Alerts(os.Stdout, list)
	return nil
}

func (a *app) alertAction(ctx context.Context, args []string, op func(string) error) error {
	if len(args) != 1 {
		return errors.New("expected exactly one transaction hash")
	}
	sel, ok, err := a.channel.Current()
	if err != nil {
		return err
	}
	if !ok {
		return alerts.ErrNoAddress
	}
	if err := a.overlay.SetAddress(sel.Address); err != nil {
		return err
	}
	if err := op(args[0]); err != nil {
		return err
	}
	return a.alerts(ctx)
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	asAlerts := fs.Bool("alerts", false, "export alerts instead of transactions")
	f := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected an output file")
	}
	path := fs.Arg(0)

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	if *asAlerts {
		list, err := a.buildAlerts(ctx)
		if err != nil {
			return err
		}
		err = export.AlertsCSV(out, list)
		if err != nil {
			return err
		}
		log.Info().Int("rows", len(list)).Str("file", path).Msg("📤 alerts exported")
		return out.Close()
	}

	res, err := a.fetch(ctx)
	if err != nil {
		return err
	}
	items := f.Apply(res.Items)
	if err := export.TransactionsCSV(out, items); err != nil {
		return err
	}
	log.Info().Int("rows", len(items)).Str("file", path).Msg("📤 transactions exported")
	return out.Close()
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	var req api.GenerateReportRequest
	fs.StringVar(&req.ReportType, "type", "", "report type (default from REPORT_TYPE)")
	fs.StringVar(&req.Format, "format", "", "output format (default from REPORT_FORMAT)")
	fs.StringVar(&req.StartDate, "from", "", "start date YYYY-MM-DD")
	fs.StringVar(&req.EndDate, "to", "", "end date YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.reports.Generate(ctx, req)
	if err != nil {
		return err
	}
	if res.LocalPath != "" {
		fmt.Printf("report saved to %s\n", res.LocalPath)
		return nil
	}
	fmt.Printf("report queued as job %s\n", res.JobID)
	return nil
}

func (a *app) templates(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("templates", flag.ContinueOnError)
	download := fs.String("download", "", "template id to download")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tpls, err := a.reports.Templates(ctx)
	if err != nil {
		return err
	}
	if *download == "" {
		render.Templates(os.Stdout, tpls)
		return nil
	}
	for _, tpl := range tpls {
		if tpl.ID == *download {
			path, err := a.reports.DownloadTemplate(ctx, tpl)
			if err != nil {
				return err
			}
			fmt.Printf("saved to %s\n", path)
			return nil
		}
	}
	return fmt.Errorf("no template with id %q", *download)
}

func (a *app) apikey(ctx context.Context, args []string) error {
	action := ""
	if len(args) > 0 {
		action = args[0]
	}
	switch action {
	case "":
		info, err := a.settings.APIKey(ctx)
		if err != nil {
			return err
		}
		fmt.Println(info.MaskedKey)
	case "reveal":
		key, err := a.settings.RevealAPIKey(ctx)
		if err != nil {
			return err
		}
		fmt.Println(key)
	case "rotate":
		key, err := a.settings.RotateAPIKey(ctx)
		if err != nil {
			return err
		}
		fmt.Println(key)
	default:
		return fmt.Errorf("unknown apikey action %q", action)
	}
	return nil
}

func (a *app) monthly(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monthly", flag.ContinueOnError)
	months := fs.Int("months", 6, "number of months")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *months <= 0 {
		return errors.New("months must be positive")
	}
	rep, err := a.reports.Monthly(ctx, *months)
	if err != nil {
		return err
	}
	render.Monthly(os.Stdout, rep)
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	org := fs.String("org", "", "organization")
	tz := fs.String("tz", "", "timezone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := a.settings.Profile(ctx)
	if err != nil {
		return err
	}
	if *name != "" || *org != "" || *tz != "" {
		if *name != "" {
			p.FullName = *name
		}
		if *org != "" {
			p.Organization = *org
		}
		if *tz != "" {
			p.Timezone = *tz
		}
		if p, err = a.settings.UpdateProfile(ctx, *p); err != nil {
			return err
		}
		log.Info().Msg("profile updated")
	}
	render.Profile(os.Stdout, p, nil)
	return nil
}

func (a *app) password(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("password", flag.ContinueOnError)
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.settings.ChangePassword(ctx, *current, *next, *confirm); err != nil {
		return err
	}
	fmt.Println("password changed")
	return nil
}

func (a *app) notify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		prefs, err := a.settings.Notifications(ctx)
		if err != nil {
			return err
		}
		render.Notifications(os.Stdout, prefs)
		return nil
	}
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return errors.New("usage: notify <name> on|off")
	}
	prefs, err := a.settings.SetNotification(ctx, args[0], args[1] == "on")
	if err != nil {
		return err
	}
	render.Notifications(os.Stdout, prefs)
	return nil
}

func (a *app) tui(ctx context.Context) error {
	mon := monitor.New(a.channel, a.client, a.cfg.AnalysisPageSize, a.cfg.AnalysisPollInterval, a.metrics)
	page := monitor.NewAlertsPage(a.overlay)
	mt := mon.Mount(ctx, page)
	defer mt.Unmount()

	// bubbletea owns the terminal; keep logs off it
	zerolog.SetGlobalLevel(zerolog.Disabled)
	return tui.Run(ctx, page, a.cfg.SelectionPollInterval)
}
