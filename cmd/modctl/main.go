package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/bootstrap"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/database"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/logging"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/notify"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/services"
	"github.com/google/uuid"
)

func main() {
	logging.Setup(nil)

	app := cli.App{
		Name:  "modctl",
		Usage: "operator tool for the moderation engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "database DSN (postgres URL or sqlite://path)",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "policy",
				Usage:   "moderation policy file (YAML or JSON)",
				EnvVars: []string{"MODERATION_POLICY_PATH"},
			},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "migrate",
			Usage:  "create or update the engine's tables",
			Action: runMigrate,
		},
		{
			Name:  "recompute-trust",
			Usage: "recompute reporter trust profiles",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "user", Usage: "single user id"},
				&cli.BoolFlag{Name: "all", Usage: "every existing profile"},
				&cli.IntFlag{Name: "batch", Value: 200, Usage: "batch size for --all"},
			},
			Action: runRecomputeTrust,
		},
		{
			Name:  "site-scale",
			Usage: "print the current site scale",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "refresh", Usage: "ignore the cached value"},
			},
			Action: runSiteScale,
		},
		{
			Name:      "analyze",
			Usage:     "score text with the heuristics (reads stdin when no argument is given)",
			ArgsUsage: "[text]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "type", Value: config.ContentPost, Usage: "content type"},
			},
			Action: runAnalyze,
		},
		{
			Name:  "cleanup-logs",
			Usage: "delete persisted system logs older than the retention window",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "days", Value: 30, EnvVars: []string{"LOG_RETENTION_DAYS"}},
			},
			Action: runCleanupLogs,
		},
		{
			Name:   "notifications",
			Usage:  "follow moderation notifications published on redis",
			Action: runNotifications,
		},
	}
	app.RunAndExitOnError()
}

// openEngine connects to the database and wires the engine. Flags override
// the environment.
func openEngine(cctx *cli.Context) (*bootstrap.Engine, error) {
	cfg := config.Load()
	if v := cctx.String("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := cctx.String("policy"); v != "" {
		cfg.PolicyPath = v
	}
	if err := database.Connect(cfg.DSN()); err != nil {
		return nil, err
	}
	return bootstrap.Build(cctx.Context, cfg, database.DB)
}

func runMigrate(cctx *cli.Context) error {
	cfg := config.Load()
	if v := cctx.String("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if err := database.Connect(cfg.DSN()); err != nil {
		return err
	}
	if err := database.Migrate(database.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Info("migration complete")
	return nil
}

func runRecomputeTrust(cctx *cli.Context) error {
	user, all := cctx.String("user"), cctx.Bool("all")
	if (user == "") == !all {
		return cli.Exit("exactly one of --user or --all is required", 2)
	}

	engine, err := openEngine(cctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	if all {
		n, err := engine.Service.RecomputeAllTrust(cctx.Context, cctx.Int("batch"))
		if err != nil {
			return err
		}
		slog.Info("trust recomputed", "profiles", n)
		return nil
	}

	id, err := uuid.Parse(user)
	if err != nil {
		return cli.Exit("invalid --user: "+err.Error(), 2)
	}
	profile, err := engine.Service.RecomputeTrust(cctx.Context, id)
	if err != nil {
		return err
	}
	return printJSON(cctx.App.Writer, profile)
}

func runSiteScale(cctx *cli.Context) error {
	engine, err := openEngine(cctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	if cctx.Bool("refresh") {
		snap, err := engine.Scale.Recompute(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(cctx.App.Writer, snap)
	}
	snap, err := engine.Scale.Snapshot(cctx.Context)
	if err != nil {
		return err
	}
	return printJSON(cctx.App.Writer, snap)
}

// analyze only needs the policy, so it never touches the database.
func runAnalyze(cctx *cli.Context) error {
	policy, err := config.LoadPolicy(cctx.String("policy"))
	if err != nil {
		return err
	}

	text := cctx.Args().First()
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	verdict, err := services.NewTextScorer(policy).Analyze(text, cctx.String("type"))
	if err != nil {
		return err
	}
	return printJSON(cctx.App.Writer, verdict)
}

func runCleanupLogs(cctx *cli.Context) error {
	cfg := config.Load()
	if v := cctx.String("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if err := database.Connect(cfg.DSN()); err != nil {
		return err
	}
	cutoff := time.Now().AddDate(0, 0, -cctx.Int("days"))
	n, err := logging.Cleanup(database.DB, cutoff)
	if err != nil {
		return err
	}
	slog.Info("system logs cleaned", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	return nil
}

func runNotifications(cctx *cli.Context) error {
	engine, err := openEngine(cctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	rn, ok := engine.Notifier.(*notify.RedisNotifier)
	if !ok {
		return cli.Exit("REDIS_URL is not configured", 2)
	}

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cctx.App.Writer
	err = rn.Subscribe(ctx, func(req notify.Request) {
		if err := printJSON(out, req); err != nil {
			slog.Warn("print notification failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

