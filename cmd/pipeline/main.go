package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go-report-pipeline/docs"
	"go-report-pipeline/internal/api"
	"go-report-pipeline/internal/api/handler"
	"go-report-pipeline/internal/model"
	"go-report-pipeline/internal/pipeline"
	"go-report-pipeline/internal/store"
	"go-report-pipeline/pkg/router"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "environment file",
		Value: ".env",
	}

	cmd := &cli.Command{
		Name:  "pipeline",
		Usage: "marketplace report pipeline",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP API",
				Flags:  []cli.Flag{envFlag},
				Action: serveAction,
			},
			{
				Name:      "run",
				Usage:     "acquire and process one report",
				ArgsUsage: "<orders|returns|shipments|fees>",
				Flags: []cli.Flag{
					envFlag,
					&cli.IntFlag{Name: "offset", Usage: "30-day windows back from now"},
					&cli.IntFlag{Name: "months", Usage: "returns lookback in months"},
				},
				Action: runReportAction,
			},
			{
				Name:   "shipments",
				Usage:  "sync inbound shipments",
				Flags:  []cli.Flag{envFlag},
				Action: taskAction(model.TaskShipmentSync),
			},
			{
				Name:   "fees",
				Usage:  "look up fees of pending orders",
				Flags:  []cli.Flag{envFlag},
				Action: taskAction(model.TaskOrderFeeSync),
			},
			{
				Name:      "cogs",
				Usage:     "replace cost of goods from a sku,cost file",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{envFlag},
				Action:    cogsAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer a.Close()

	// runs left unfinished by a previous process can never complete
	n, err := store.FailInterruptedRuns()
	if err != nil {
		return fmt.Errorf("failed to reconcile runs: %w", err)
	}
	if n > 0 {
		a.logger.Warn("marked interrupted runs as failed", zap.Int64("count", n))
	}

	r := router.New(a.logger.Named("http"))
	api.RegisterRoutes(r, handler.New(a.runner, a.outputs, a.logger.Named("api")))

	fmt.Printf("🚀 Serving on http://localhost%s (docs at /swagger/index.html)\n", a.cfg.HTTP.Addr)
	err = r.Start(ctx, a.cfg.HTTP.Addr)
	// cancelled runs record their failure before the database closes
	a.runner.Wait()
	return err
}

func runReportAction(ctx context.Context, cmd *cli.Command) error {
	kind, err := model.ParseReportKind(cmd.Args().First())
	if err != nil {
		return err
	}
	if cmd.Int("offset") < 0 || cmd.Int("months") < 0 {
		return fmt.Errorf("offset and months cannot be negative")
	}
	return execute(ctx, cmd.String("env"), model.RunSpec{
		Task:   model.TaskReport,
		Kind:   kind,
		Offset: int(cmd.Int("offset")),
		Months: int(cmd.Int("months")),
	})
}

func taskAction(task string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return execute(ctx, cmd.String("env"), model.RunSpec{Task: task})
	}
}

// execute runs spec in the foreground
func execute(ctx context.Context, envFile string, spec model.RunSpec) error {
	a, err := newApp(ctx, envFile)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.runner.CreateRun(spec)
	if err != nil {
		return err
	}
	fmt.Printf("🔄 Run %s started (%s)\n", run.ID, spec.Label())

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Pipeline.RunTimeout)
	defer cancel()
	if err := a.runner.Execute(ctx, run); err != nil {
		if pipeline.IsRetryable(err) {
			fmt.Printf("🔁 Run %s can be retried\n", run.ID)
		}
		return fmt.Errorf("run %s failed: %w", run.ID, err)
	}

	fmt.Printf("✅ Run %s completed\n", run.ID)
	if spec.Task == model.TaskReport {
		fmt.Printf("📁 Exports in %s\n", a.outputs.RunDir(run.ID))
	}
	return nil
}

func cogsAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("a sku,cost file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer a.Close()

	costs := pipeline.ParseCOGs(string(data))
	if len(costs) == 0 {
		return fmt.Errorf("no valid cost lines in %s", path)
	}
	if err := store.ReplaceCOGs(costs); err != nil {
		return err
	}
	fmt.Printf("💾 Stored %d unit costs\n", len(costs))
	return nil
}
