package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"wallet-risk-lab/internal/config"
	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/logging"
	"wallet-risk-lab/internal/scoring"
	chstore "wallet-risk-lab/internal/storage/clickhouse"
	pgstore "wallet-risk-lab/internal/storage/postgres"
	"wallet-risk-lab/internal/verification"
)

// errDivergent is returned when any wallet's stored score does not replay.
var errDivergent = errors.New("stored scores diverge from replayed scores")

var (
	runIDFlag = &cli.StringFlag{
		Name:  "run-id",
		Usage: "Run to verify (default: latest run)",
	}
	modelFlag = &cli.StringFlag{
		Name:     "model",
		Usage:    "Path to the run's model.json",
		Required: true,
	}
	postgresDSNFlag = &cli.StringFlag{
		Name:     "postgres-dsn",
		Usage:    "PostgreSQL connection string",
		EnvVars:  []string{"POSTGRES_DSN"},
		Required: true,
	}
	clickhouseDSNFlag = &cli.StringFlag{
		Name:     "clickhouse-dsn",
		Usage:    "ClickHouse connection string",
		EnvVars:  []string{"CLICKHOUSE_DSN"},
		Required: true,
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Output the verification report as JSON",
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		EnvVars: []string{"LOG_LEVEL"},
		Value:   "info",
	}
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "verify",
		Usage: "Re-score a persisted run with its model and compare against stored scores",
		Flags: []cli.Flag{runIDFlag, modelFlag, postgresDSNFlag, clickhouseDSNFlag, jsonFlag, logLevelFlag},
		Action: func(c *cli.Context) error {
			logger, err := logging.New(c.String(logLevelFlag.Name), logging.FormatText)
			if err != nil {
				return err
			}
			return verify(c.Context, c, logger)
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func verify(ctx context.Context, c *cli.Context, logger logrus.FieldLogger) error {
	model, err := loadModel(c.String(modelFlag.Name))
	if err != nil {
		return err
	}

	pool, err := pgstore.NewPool(ctx, c.String(postgresDSNFlag.Name), 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, c.String(clickhouseDSNFlag.Name))
	if err != nil {
		return fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	run, err := findRun(ctx, pgstore.NewRunStore(pool), c.String(runIDFlag.Name))
	if err != nil {
		return err
	}
	if err := checkModel(run, model); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"run_id":    run.RunID,
		"selection": run.Selection,
		"wallets":   run.WalletCount,
	}).Info("Verifying run")

	verifier := verification.NewScoreVerifier(
		chstore.NewWalletFeatureStore(conn),
		pgstore.NewCreditScoreStore(pool),
		model,
	)
	report, err := verifier.VerifyRun(ctx, run.RunID)
	if err != nil {
		return err
	}

	if c.Bool(jsonFlag.Name) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if !report.OK() {
		return fmt.Errorf("%d of %d wallets: %w", report.DivergentWallets, report.TotalWallets, errDivergent)
	}
	return nil
}

func loadModel(path string) (*scoring.SelectedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	return scoring.LoadSelected(f)
}

type runFinder interface {
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)
	GetLatest(ctx context.Context) (*domain.RunRecord, error)
}

func findRun(ctx context.Context, runs runFinder, runID string) (*domain.RunRecord, error) {
	if runID == "" {
		run, err := runs.GetLatest(ctx)
		if err != nil {
			return nil, fmt.Errorf("latest run: %w", err)
		}
		return run, nil
	}
	run, err := runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return run, nil
}

// checkModel rejects a model file produced with another selection or label policy.
func checkModel(run *domain.RunRecord, model *scoring.SelectedModel) error {
	if model.Selection != run.Selection {
		return fmt.Errorf("model selection %q, run %s used %q", model.Selection, run.RunID, run.Selection)
	}
	if model.Policy != run.PolicyVersion {
		return fmt.Errorf("model label policy %q, run %s used %q", model.Policy, run.RunID, run.PolicyVersion)
	}
	return nil
}

func printReport(r *verification.VerificationReport) {
	fmt.Printf("Run %s: %d wallets, %d matched, %d divergent\n",
		r.RunID, r.TotalWallets, r.MatchedWallets, r.DivergentWallets)
	for _, res := range r.Results {
		if res.Match {
			continue
		}
		fmt.Printf("  %s:\n", res.AccountID)
		for _, d := range res.Divergences {
			fmt.Printf("    %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
		}
	}
}
