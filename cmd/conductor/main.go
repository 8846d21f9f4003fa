package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"

	"conductor/internal/adapter/history"
	"conductor/internal/domain"
	"conductor/internal/infra/config"
	"conductor/internal/infra/logger"
	"conductor/internal/infra/tracer"
	"conductor/internal/usecase/dispatch"
	"conductor/internal/usecase/orchestrator"
)

// statsReportSchedule drives the periodic accounting report in REPL mode.
const statsReportSchedule = "@every 10m"

type flags struct {
	Config  string
	Mode    string
	Role    string
	Message string
}

func main() {
	var f flags
	flag.StringVar(&f.Config, "config", "config.yaml", "config file path")
	flag.StringVar(&f.Mode, "mode", "repl", "one of: repl, send, balance, fanout, orchestrate, status")
	flag.StringVar(&f.Role, "role", "", "role for -mode send")
	flag.StringVar(&f.Message, "message", "", "message for one-shot modes")
	flag.Usage = showUsage
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Fprintln(os.Stderr, `conductor - AI request dispatch and accounting core

USAGE:
    conductor [FLAGS]

FLAGS:
    -config PATH     Config file path (default: ./config.yaml)
    -mode MODE       repl (default), send, balance, fanout, orchestrate, status
    -role NAME       Role to address in -mode send
    -message TEXT    Message for one-shot modes

CONFIGURATION:
    Config file: ./config.yaml
    Environment: CONDUCTOR_* variables override config

EXAMPLES:
    conductor                                        # interactive session
    conductor -mode status                           # registry snapshot
    conductor -mode send -role lead_developer -message "review this design"
    conductor -mode orchestrate -message "plan and build a web shop"`)
}

func run(f flags) error {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	store, closeStore, err := buildHistory(cfg.History)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	d := dispatch.New(dispatch.Options{
		SendTimeout:    cfg.Dispatcher.SendTimeout,
		FanoutLimit:    cfg.Dispatcher.FanoutLimit,
		MinInterval:    cfg.Dispatcher.MinInterval,
		CircuitBreaker: cfg.LLM.CircuitBreaker,
		Pricing:        cfg.LLM.Pricing,
		History:        store,
		Logger:         log,
	})

	for _, pc := range cfg.LLM.Providers {
		id, err := d.AddAdapter(pc)
		if err != nil {
			return fmt.Errorf("provider %q: %w", pc.Type, err)
		}
		log.Info("provider ready", "adapter", id, "model", pc.Model)
	}
	for _, rc := range cfg.Roles {
		if err := d.AssignRole(rc.Role, rc.Adapter); err != nil {
			return fmt.Errorf("role %q: %w", rc.Role, err)
		}
	}

	o := orchestrator.New(d, orchestrator.Options{
		Threshold:     cfg.Orchestrator.Threshold,
		MaxConcurrent: cfg.Orchestrator.MaxConcurrent,
		Logger:        log,
	})

	switch f.Mode {
	case "repl", "":
		return repl(ctx, d, o, log)
	case "send":
		if f.Role == "" {
			return fmt.Errorf("-mode send requires -role")
		}
		resp, err := d.Send(ctx, f.Role, f.Message, "")
		if err != nil {
			return err
		}
		fmt.Println(resp.Content)
	case "balance":
		resp, err := d.BalanceLoad(ctx, f.Message, "")
		if err != nil {
			return err
		}
		fmt.Println(resp.Content)
	case "fanout":
		printFanOut(d.FanOut(ctx, f.Message, ""))
	case "orchestrate":
		res, err := o.Orchestrate(ctx, f.Message)
		if err != nil {
			return err
		}
		printOrchestration(res)
	case "status":
		printStatus(ctx, d)
	default:
		return fmt.Errorf("unknown mode %q", f.Mode)
	}
	return nil
}

// buildHistory constructs the conversation store for the configured backend.
// The returned closer is nil for stores without resources to release.
func buildHistory(cfg config.HistoryConfig) (domain.ConversationStore, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		return history.NewMemoryStore(cfg.MaxEntries), nil, nil
	case "sqlite":
		s, err := history.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// repl runs an interactive session. Plain input is orchestrated; slash
// commands expose the dispatch strategies and the monitoring views. A cron
// job reports the accumulated totals while the session is open.
func repl(ctx context.Context, d *dispatch.Dispatcher, o *orchestrator.Orchestrator, log *slog.Logger) error {
	c := cron.New()
	if _, err := c.AddFunc(statsReportSchedule, func() {
		total := d.GetTotalStats(context.Background())
		log.Info("usage report",
			"adapters", total.Adapters,
			"requests", total.Stats.Requests,
			"errors", total.Stats.Errors,
			"tokens", total.Stats.TotalTokens(),
			"cost", total.Stats.TotalCost,
		)
	}); err != nil {
		return fmt.Errorf("stats report: %w", err)
	}
	c.Start()
	defer c.Stop()

	fmt.Println("conductor ready. Type a message, /help for commands, /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			res, err := o.Orchestrate(ctx, line)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			printOrchestration(res)
			continue
		}
		if quit := command(ctx, d, o, line); quit {
			return nil
		}
	}
}

// command executes one slash command and reports whether the session should end.
func command(ctx context.Context, d *dispatch.Dispatcher, o *orchestrator.Orchestrator, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`Commands:
  /send <role> <message>   dispatch to the adapter bound to a role
  /balance <message>       dispatch to the least-loaded available adapter
  /fanout <message>        dispatch to every available adapter
  /status                  adapter registry snapshot
  /roles                   role bindings and per-role accounting
  /stats                   dispatcher-wide totals
  /history [n]             last n conversation entries (default 10)
  /reset <scope>           reset accounting: all, adapters, roles, conversations
  /specialists             intent router specialist table
  /quit                    exit`)

	case "/send":
		role, msg, ok := strings.Cut(rest, " ")
		if !ok {
			fmt.Println("usage: /send <role> <message>")
			return false
		}
		resp, err := d.Send(ctx, role, strings.TrimSpace(msg), "")
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println(resp.Content)

	case "/balance":
		resp, err := d.BalanceLoad(ctx, rest, "")
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println(resp.Content)

	case "/fanout":
		printFanOut(d.FanOut(ctx, rest, ""))

	case "/status":
		printStatus(ctx, d)

	case "/roles":
		statuses := d.RoleStatuses()
		if len(statuses) == 0 {
			fmt.Println("no roles bound")
			return false
		}
		for role, rs := range statuses {
			fmt.Printf("%s -> %s  requests=%d success=%.1f%% tokens=%d cost=$%.4f\n",
				role, rs.AdapterID, rs.Stats.Requests, rs.Stats.SuccessRate,
				rs.Stats.TotalTokens(), rs.Stats.TotalCost)
		}

	case "/stats":
		total := d.GetTotalStats(ctx)
		fmt.Printf("adapters=%d roles=%d conversations=%d\n", total.Adapters, total.Roles, total.Conversations)
		fmt.Printf("requests=%d errors=%d success=%.1f%% tokens=%d cost=$%.4f avg_latency=%s\n",
			total.Stats.Requests, total.Stats.Errors, total.Stats.SuccessRate,
			total.Stats.TotalTokens(), total.Stats.TotalCost, total.Stats.AvgLatency)

	case "/history":
		limit := 10
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				fmt.Println("usage: /history [n]")
				return false
			}
			limit = n
		}
		entries, err := d.History(ctx, limit)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		for _, e := range entries {
			fmt.Printf("[%s] %s via %s: %s\n",
				e.Timestamp.Format("15:04:05"), e.Role, e.AdapterID, firstLine(e.Message))
		}
		if len(entries) == 0 {
			fmt.Println("no conversation entries")
		}

	case "/reset":
		if rest == "" {
			rest = "all"
		}
		if err := d.ResetStats(ctx, rest); err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println("reset:", rest)

	case "/specialists":
		for key, info := range o.Specialists() {
			fmt.Printf("%s (%s): %s\n", key, info.Name, info.Description)
		}

	default:
		fmt.Println("unknown command, /help for the list")
	}
	return false
}

func printStatus(ctx context.Context, d *dispatch.Dispatcher) {
	statuses := d.AdapterStatuses()
	if len(statuses) == 0 {
		fmt.Println("no adapters registered")
		return
	}
	for _, id := range d.Adapters() {
		st := statuses[id]
		line := fmt.Sprintf("%s [%s] model=%s status=%s requests=%d success=%.1f%% tokens=%d cost=$%.4f",
			id, st.ProviderType, st.Model, st.Status, st.Stats.Requests,
			st.Stats.SuccessRate, st.Stats.TotalTokens(), st.Stats.TotalCost)
		if st.RetryAfter > 0 {
			line += fmt.Sprintf(" retry_after=%s", st.RetryAfter)
		}
		fmt.Println(line)
	}
}

func printFanOut(results map[string]*domain.Response) {
	if len(results) == 0 {
		fmt.Println("no adapters available")
		return
	}
	for id, resp := range results {
		if resp == nil {
			fmt.Printf("== %s: failed ==\n", id)
			continue
		}
		fmt.Printf("== %s ==\n%s\n", id, resp.Content)
	}
}

func printOrchestration(res *orchestrator.Result) {
	fmt.Println(res.PrimaryResponse)
	if len(res.ActiveSpecialists) > 0 {
		fmt.Println("\nSpecialists:", strings.Join(res.ActiveSpecialists, ", "))
	}
	for _, action := range res.SuggestedActions {
		fmt.Println("  -", action)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
