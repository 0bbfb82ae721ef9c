package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/engine"
	"fraud-graph-engine/internal/generator"
	"fraud-graph-engine/internal/infrastructure/graph"
	"fraud-graph-engine/internal/infrastructure/metadata"
	"fraud-graph-engine/internal/monitor"
	"fraud-graph-engine/internal/orchestrator"
	"fraud-graph-engine/internal/pkg/config"
	"fraud-graph-engine/internal/rules"
)

func main() {
	// Load .env if present
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)

	kv, err := metadata.NewRedisKV(cfg.Metadata)
	if err != nil {
		logger.WithError(err).Fatal("metadata KV unavailable")
	}
	defer kv.Close()

	store, err := metadata.NewStore(cfg.Metadata, kv, logger)
	if err != nil {
		logger.WithError(err).Fatal("metadata store init failed")
	}

	client, err := graph.NewClient(cfg.Graph, store, logger)
	if err != nil {
		logger.WithError(err).Fatal("graph unavailable")
	}

	registry := rules.NewRegistry(
		rules.NewFlaggedCounterparty(client),
		rules.NewFlaggedNeighborhood(client),
		rules.NewFlaggedDevice(client),
	)
	mon := monitor.New(monitor.DefaultMaxHistory, registry.Names(), logger)
	eng := engine.New(cfg.Fraud, client, registry, store, mon, logger)
	gen := generator.New(cfg.Generation, client, eng, mon, logger)
	svc := orchestrator.New(cfg, client, eng, gen, registry, store, mon, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Warmup(ctx); err != nil {
		logger.WithError(err).Warn("warmup failed")
	}

	go func() {
		select {
		case <-svc.GeneratorFatal():
			fmt.Println("\ntransaction generation circuit tripped, load stopped")
		case <-ctx.Done():
		}
	}()

	repl(ctx, svc)

	if err := svc.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// repl reads commands from stdin until quit, EOF or a signal
func repl(ctx context.Context, svc *orchestrator.Service) {
	fmt.Println("fraud graph engine. Type 'help' for commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := dispatch(ctx, svc, line); quit {
				return
			}
		}
	}
}

func dispatch(ctx context.Context, svc *orchestrator.Service, line string) (quit bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		printHelp()
	case "stats":
		showStats(ctx, svc)
	case "performance", "perf":
		showPerformance(svc, parseWindow(args))
	case "fraud", "fraud-perf":
		showFraudPerformance(svc, parseWindow(args))
	case "users":
		showUsers(ctx, svc)
	case "transactions", "txns":
		showTransactions(ctx, svc)
	case "recent":
		showRecent(svc, args)
	case "rules":
		showRules(svc)
	case "enable", "disable":
		toggleRule(svc, cmd, args)
	case "flag":
		flagAccount(ctx, svc, args)
	case "unflag":
		unflagAccount(ctx, svc, args)
	case "indexes":
		showIndexes(ctx, svc)
	case "create-fraud-index":
		createIndexes(ctx, svc)
	case "seed":
		seed(ctx, svc)
	case "send":
		sendTransaction(ctx, svc, args)
	case "start":
		startGenerator(ctx, svc, args)
	case "stop":
		if err := svc.StopGenerator(); err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			fmt.Println("generator stopped")
		}
	case "status":
		showStatus(svc)
	case "health":
		if err := svc.HealthCheck(ctx); err != nil {
			fmt.Printf("unhealthy: %v\n", err)
		} else {
			fmt.Println("healthy")
		}
	default:
		fmt.Printf("unknown command %q, try 'help'\n", cmd)
	}
	return false
}

func printHelp() {
	fmt.Print(`commands:
  stats                        graph and fraud counters
  performance [1|5|10]         per-stream latency over the window (minutes)
  fraud [1|5|10]               rule evaluation latency over the window
  users                        user population by risk tier
  transactions                 transaction totals by disposition
  recent [n]                   latest generated transactions
  rules                        list detection rules
  enable <rule>                enable a rule
  disable <rule>               disable a rule
  flag <account> [reason]      mark an account fraudulent
  unflag <account>             clear an account's fraud flag
  send <from> <to> <amount>    create and evaluate one transaction
  indexes                      show graph index info
  create-fraud-index           create the indexes the rules traverse
  seed                         wipe the graph and load the sample dataset
  start <tps>                  start synthetic load
  stop                         stop synthetic load
  status                       generator status
  health                       check graph connectivity
  quit                         exit
`)
}

func parseWindow(args []string) int {
	if len(args) == 0 {
		return 1
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 1
	}
	return n
}

func showStats(ctx context.Context, svc *orchestrator.Service) {
	stats, err := svc.Dashboard(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("users:        %d\n", stats.Users)
	fmt.Printf("accounts:     %d\n", stats.Accounts)
	fmt.Printf("devices:      %d\n", stats.Devices)
	fmt.Printf("transactions: %d\n", stats.Transactions)
	fmt.Printf("flagged:      %d\n", stats.Flagged)
	fmt.Printf("amount:       $%.2f\n", stats.Amount)
	fmt.Printf("fraud rate:   %.2f%%\n", stats.FraudRate)
	fmt.Printf("health:       %s\n", stats.Health)
}

func showPerformance(svc *orchestrator.Service, window int) {
	all, _ := svc.Performance(window)

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-28s %8s %10s %10s %10s %10s %8s\n",
		"stream", "count", "min", "avg", "p95", "max", "qps")
	for _, name := range names {
		s := all[name]
		fmt.Printf("%-28s %8d %10s %10s %10s %10s %8.1f\n",
			name, s.Count, fmtMs(s.Min), fmtMs(s.Avg), fmtMs(s.P95), fmtMs(s.Max), s.QPS)
	}
}

func showFraudPerformance(svc *orchestrator.Service, window int) {
	all, _ := svc.Performance(window)
	delete(all, monitor.StreamTransaction)

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-28s %8s %8s %10s %10s %9s\n",
		"rule", "success", "failure", "avg", "p95", "rate")
	for _, name := range names {
		s := all[name]
		fmt.Printf("%-28s %8d %8d %10s %10s %8.1f%%\n",
			name, s.Success, s.Failure, fmtMs(s.Avg), fmtMs(s.P95), s.SuccessRate*100)
	}
}

func showUsers(ctx context.Context, svc *orchestrator.Service) {
	stats, err := svc.UserStats(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("total:     %d\n", stats.Total)
	fmt.Printf("low risk:  %d\n", stats.LowRisk)
	fmt.Printf("med risk:  %d\n", stats.MedRisk)
	fmt.Printf("high risk: %d\n", stats.HighRisk)
}

func showTransactions(ctx context.Context, svc *orchestrator.Service) {
	stats, err := svc.TransactionStats(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("total:   %d\n", stats.Total)
	fmt.Printf("blocked: %d\n", stats.Blocked)
	fmt.Printf("review:  %d\n", stats.Review)
	fmt.Printf("clean:   %d\n", stats.Clean)
}

func showRecent(svc *orchestrator.Service, args []string) {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}
	recent := svc.RecentTransactions(limit)
	if len(recent) == 0 {
		fmt.Println("no transactions yet")
		return
	}
	for _, tx := range recent {
		fmt.Printf("%s  %-10s %10s  %v -> %v  %s\n",
			tx.Timestamp.Format(time.TimeOnly), tx.Type, tx.Amount.StringFixed(2),
			tx.SenderID, tx.ReceiverID, tx.Location)
	}
}

func showRules(svc *orchestrator.Service) {
	for _, info := range svc.ListRules() {
		state := "enabled"
		if !info.Enabled {
			state = "disabled"
		}
		fmt.Printf("%-28s %-8s %-6s %s\n",
			info.Name, state, info.Metadata.Complexity, info.Metadata.Description)
	}
}

func toggleRule(svc *orchestrator.Service, cmd string, args []string) {
	if len(args) != 1 {
		fmt.Printf("usage: %s <rule>\n", cmd)
		return
	}
	if err := svc.ToggleRule(args[0], cmd == "enable"); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("rule %s %sd\n", args[0], cmd)
}

func flagAccount(ctx context.Context, svc *orchestrator.Service, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: flag <account> [reason]")
		return
	}
	reason := "manual"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}
	if err := svc.FlagAccount(ctx, parseID(args[0]), reason); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("account %s flagged\n", args[0])
}

func unflagAccount(ctx context.Context, svc *orchestrator.Service, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: unflag <account>")
		return
	}
	if err := svc.UnflagAccount(ctx, parseID(args[0])); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("account %s unflagged\n", args[0])
}

func showIndexes(ctx context.Context, svc *orchestrator.Service) {
	info, err := svc.InspectIndexes(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("cardinality: %v\n", info.Cardinality)
	fmt.Printf("indexes:     %v\n", info.IndexList)
}

func createIndexes(ctx context.Context, svc *orchestrator.Service) {
	for name, err := range svc.CreateFraudIndexes(ctx) {
		if err != nil {
			fmt.Printf("%s: %v\n", name, err)
		} else {
			fmt.Printf("%s: created\n", name)
		}
	}
}

func seed(ctx context.Context, svc *orchestrator.Service) {
	fmt.Println("seeding sample data, this drops the current graph...")
	if err := svc.Seed(ctx); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("done")
}

func sendTransaction(ctx context.Context, svc *orchestrator.Service, args []string) {
	if len(args) != 3 {
		fmt.Println("usage: send <from> <to> <amount>")
		return
	}
	amount, err := decimal.NewFromString(args[2])
	if err != nil {
		fmt.Printf("bad amount: %v\n", err)
		return
	}

	summary, err := svc.CreateTransaction(ctx, parseID(args[0]), parseID(args[1]),
		amount, fraud.TypeTransfer, "Manual, US")
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("txn %s created\n", summary.Transaction.TxnID)
	for _, v := range summary.Verdicts {
		outcome := string(v.Status)
		if v.Exception {
			outcome = "exception: " + v.Err
		}
		fmt.Printf("  %-28s fraud=%-5t score=%-3d %s\n", v.RuleName, v.IsFraud, v.Score, outcome)
	}
}

func startGenerator(ctx context.Context, svc *orchestrator.Service, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: start <tps>")
		return
	}
	tps, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("bad rate: %v\n", err)
		return
	}
	if err := svc.StartGenerator(ctx, tps); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("generating at %d tps\n", tps)
}

func showStatus(svc *orchestrator.Service) {
	st := svc.GeneratorStatus()
	if !st.Running {
		fmt.Println("generator: stopped")
		if st.Created > 0 {
			fmt.Printf("last run:  %d created, %d failed\n", st.Created, st.Failed)
		}
		return
	}
	fmt.Println("generator: running")
	fmt.Printf("target:    %d tps\n", st.TargetTPS)
	fmt.Printf("actual:    %.1f tps\n", st.ActualTPS)
	fmt.Printf("queue:     %d\n", st.QueueSize)
	fmt.Printf("created:   %d\n", st.Created)
	fmt.Printf("failed:    %d\n", st.Failed)
	fmt.Printf("uptime:    %s\n", time.Since(st.StartedAt).Round(time.Second))
}

// parseID keeps numeric-looking ids numeric; graph providers assign int64
// ids while seeded datasets often use strings
func parseID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func fmtMs(ms float64) string {
	if ms == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fms", ms)
}
