// integrityctl is the control CLI for integrityd.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"integrityd/internal/config"
	"integrityd/internal/detect"
	"integrityd/internal/logging"
	"integrityd/internal/report"
	"integrityd/internal/score"
	"integrityd/internal/session"
	"integrityd/internal/store"
	"integrityd/internal/telemetry"
)

var (
	configPath = flag.String("config", "", "path to config file")
	days       = flag.Int("days", 0, "report window in days (default: from config)")
	grade      = flag.Int("grade", detect.DefaultGrade, "student grade level for replay")
	asJSON     = flag.Bool("json", false, "emit JSON instead of formatted text")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "report":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: integrityctl report <userId>")
			os.Exit(1)
		}
		cmdReport(flag.Arg(1))
	case "sessions":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: integrityctl sessions <userId>")
			os.Exit(1)
		}
		cmdSessions(flag.Arg(1))
	case "mark-fp":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "Usage: integrityctl mark-fp <sessionId> <eventId>")
			os.Exit(1)
		}
		cmdMarkFalsePositive(flag.Arg(1), flag.Arg(2))
	case "replay":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: integrityctl replay <telemetry.jsonl>")
			os.Exit(1)
		}
		cmdReplay(flag.Arg(1))
	case "reconcile":
		cmdReconcile()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `integrityctl - Control utility for integrityd

Usage: integrityctl [options] <command> [args]

Commands:
  report <userId>               Guardian report for a student
  sessions <userId>             List a student's recorded sessions
  mark-fp <sessionId> <eventId> Mark a suspicious event as a false positive
  replay <telemetry.jsonl>      Replay a telemetry stream into the store
  reconcile                     Finalize sessions left open past the stale window
  help                          Show this help message

Options:
  -config <path>  Path to config file (default: ~/.integrityd/config.toml)
  -days <n>       Report window in days (default: from config)
  -grade <n>      Student grade level for replay (default: 4)
  -json           Emit JSON instead of formatted text`)
}

func loadConfig() *config.Config {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.NewLoader(path).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func openStore(cfg *config.Config) store.Gateway {
	if cfg.Storage.Type == "memory" {
		return store.NewMemory()
	}
	gw, err := store.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	return gw
}

func cmdReport(userID string) {
	cfg := loadConfig()
	gw := openStore(cfg)
	defer gw.Close()

	window := *days
	if window <= 0 {
		window = cfg.Report.WindowDays
	}

	agg := report.NewAggregator(gw, report.Options{FlagScore: cfg.Report.FlagScore})
	rep := agg.Generate(context.Background(), userID, window)

	if *asJSON {
		fmt.Println(prettyJSON(rep))
		return
	}
	report.PrintReport(os.Stdout, rep)
}

func cmdSessions(userID string) {
	cfg := loadConfig()
	gw := openStore(cfg)
	defer gw.Close()

	ctx := context.Background()
	keys, err := gw.Keys(ctx, store.NamespaceSessions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
		os.Exit(1)
	}

	prefix := "session_" + userID + "_"
	fmt.Printf("%-40s %-20s %-8s %-7s %s\n", "Session", "Started", "Score", "Events", "State")
	fmt.Println(strings.Repeat("-", 84))

	count := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		s, err := session.Load(ctx, gw, key)
		if err != nil || s.UserID != userID {
			continue
		}
		state := "closed"
		if s.Open() {
			state = "open"
		}
		fmt.Printf("%-40s %-20s %-8d %-7d %s\n",
			s.ID, s.StartTime.Format("2006-01-02 15:04"), s.IntegrityScore,
			len(s.SuspiciousEvents), state)
		count++
	}
	if count == 0 {
		fmt.Println("(no sessions recorded)")
	}
}

func cmdMarkFalsePositive(sessionID, eventID string) {
	cfg := loadConfig()
	gw := openStore(cfg)
	defer gw.Close()

	if err := session.MarkFalsePositive(context.Background(), gw, sessionID, eventID); err != nil {
		fmt.Fprintf(os.Stderr, "Error marking false positive: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Event %s marked as false positive.\n", eventID)
	fmt.Println("Sealed scores are not rewritten; future reports reflect the correction.")
}

func cmdReplay(path string) {
	cfg := loadConfig()
	gw := openStore(cfg)
	defer gw.Close()

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening telemetry file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	log := logging.Default().WithComponent("replay")
	r := telemetry.NewReplayer(gw,
		detect.New(cfg.Detection.Table()),
		score.New(cfg.Penalties),
		session.Options{
			BatchSize:        cfg.Monitor.BatchSize,
			RetainAfterFlush: cfg.Monitor.RetainAfterFlush,
			Grade:            *grade,
		}, log)

	stats, err := r.Run(context.Background(), telemetry.NewReader(f))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Replay Complete ===")
	fmt.Printf("Records:  %d\n", stats.Records)
	fmt.Printf("Sessions: %d\n", stats.Sessions)
	fmt.Printf("Events:   %d\n", stats.Events)
}

func cmdReconcile() {
	cfg := loadConfig()
	gw := openStore(cfg)
	defer gw.Close()

	staleAfter := time.Duration(cfg.Monitor.StaleSessionMinutes) * time.Minute
	rec := session.NewReconciler(gw, score.New(cfg.Penalties), staleAfter)

	sealed, err := rec.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reconcile failed: %v\n", err)
		os.Exit(1)
	}
	if sealed == 0 {
		fmt.Println("No stale sessions found.")
		return
	}
	fmt.Printf("Finalized %d stale session(s).\n", sealed)
}

func prettyJSON(v interface{}) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data)
}
