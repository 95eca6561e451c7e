package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"wallet-risk-lab/internal/config"
	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/reporting"
	"wallet-risk-lab/internal/storage"
	"wallet-risk-lab/internal/storage/memory"
)

var fixedTime = time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "output")
	cfg.Output.TopN = 10
	return cfg
}

func newTestPipeline(cfg *config.Config) *ScoringPipeline {
	return NewScoringPipeline(cfg).
		WithClock(func() time.Time { return fixedTime }).
		WithRunID(func() string { return "run-test" })
}

type memoryStores struct {
	runs     *memory.RunStore
	features *memory.WalletFeatureStore
	scores   *memory.CreditScoreStore
}

func newMemoryStores() memoryStores {
	return memoryStores{
		runs:     memory.NewRunStore(),
		features: memory.NewWalletFeatureStore(),
		scores:   memory.NewCreditScoreStore(),
	}
}

func (m memoryStores) Stores() Stores {
	return Stores{
		Runs:     m.runs,
		Features: m.features,
		Scores:   []storage.CreditScoreStore{m.scores},
	}
}

func writeFixtures(t *testing.T) []string {
	t.Helper()
	paths, err := WriteFixtures(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("Failed to write fixtures: %v", err)
	}
	return paths
}

func writeDocument(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestScoringPipeline_Run(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	stores := newMemoryStores()
	paths := writeFixtures(t)

	result, err := newTestPipeline(cfg).WithStores(stores.Stores()).Run(ctx, paths)
	if err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	// 40 synthetic wallets plus 0xA and 0xB
	if result.Run.WalletCount != 42 {
		t.Errorf("WalletCount = %d, want 42", result.Run.WalletCount)
	}
	if result.Run.PolicyVersion != "engagement-rule/v1" {
		t.Errorf("PolicyVersion = %q", result.Run.PolicyVersion)
	}
	if result.Run.Selection != domain.SelectionRefit {
		t.Errorf("Selection = %q, want refit", result.Run.Selection)
	}
	if len(result.Run.DataVersion) != 64 {
		t.Errorf("DataVersion = %q, want 64 hex chars", result.Run.DataVersion)
	}
	if !result.Run.FinishedAt.Equal(fixedTime) {
		t.Errorf("FinishedAt = %v", result.Run.FinishedAt)
	}

	// Verify all files exist
	for _, f := range []string{
		reporting.ScoresFile, reporting.FeaturesFile, reporting.ModelFile, reporting.ReportFile,
		reporting.ROCPlotFile, reporting.PRPlotFile, reporting.ImportancePlotFile, reporting.ConfusionPlotFile,
	} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, f)); err != nil {
			t.Errorf("Expected file %s: %v", f, err)
		}
	}

	// Scores are ranked and bounded
	if len(result.Scores) != 42 {
		t.Fatalf("expected 42 scores, got %d", len(result.Scores))
	}
	for i, s := range result.Scores {
		if s.Rank != i+1 {
			t.Errorf("score %d has rank %d", i, s.Rank)
		}
		if s.Score < 0 || s.Score > 100 {
			t.Errorf("score %s out of range: %v", s.AccountID, s.Score)
		}
		if i > 0 && s.Score > result.Scores[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}

	// wallet_score.csv holds the top N only
	csv, err := os.ReadFile(filepath.Join(cfg.Output.Dir, reporting.ScoresFile))
	if err != nil {
		t.Fatalf("read scores: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	if lines[0] != "account_id,credit_score" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if len(lines) != 1+cfg.Output.TopN {
		t.Errorf("expected %d score rows, got %d", cfg.Output.TopN, len(lines)-1)
	}

	report, err := os.ReadFile(filepath.Join(cfg.Output.Dir, reporting.ReportFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{"run-test", "heuristic rule", "### Data Sufficiency", "### Confusion Matrix"} {
		if !bytes.Contains(report, []byte(want)) {
			t.Errorf("REPORT.md missing %q", want)
		}
	}

	// Persisted rows
	run, err := stores.runs.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if run.RunID != "run-test" || run.DepositCount != result.Run.DepositCount {
		t.Errorf("unexpected run record: %+v", run)
	}
	stored, err := stores.features.GetByRun(ctx, "run-test")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(stored) != 42 {
		t.Errorf("expected 42 stored vectors, got %d", len(stored))
	}
	top, err := stores.scores.GetTopN(ctx, "run-test", 3)
	if err != nil {
		t.Fatalf("GetTopN failed: %v", err)
	}
	if len(top) != 3 || top[0].AccountID != result.Scores[0].AccountID {
		t.Errorf("unexpected top scores: %+v", top)
	}
}

func TestScoringPipeline_WalletScenarios(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	stores := newMemoryStores()

	if _, err := newTestPipeline(cfg).WithStores(stores.Stores()).Run(ctx, writeFixtures(t)); err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	vectors, err := stores.features.GetByRun(ctx, "run-test")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	byAccount := make(map[string]*domain.WalletFeatureVector)
	for _, v := range vectors {
		byAccount[v.AccountID] = v
	}

	// 0xA: one 5 USD deposit per file, same day
	a := byAccount["0xA"]
	if a == nil {
		t.Fatal("0xA not aggregated")
	}
	if a.TotalUSD != 15 || a.TxCount != 3 || a.ActiveDays != 1 || a.UniqueAssets != 1 || a.StdUSD != 0 {
		t.Errorf("unexpected 0xA features: %+v", a)
	}

	// 0xB: five 3 USD deposits on distinct days
	b := byAccount["0xB"]
	if b == nil {
		t.Fatal("0xB not aggregated")
	}
	if b.TotalUSD != 15 || b.TxCount != 5 || b.ActiveDays != 5 {
		t.Errorf("unexpected 0xB features: %+v", b)
	}

	// The refit model reproduces the heuristic labels on these wallets
	scoreA, err := stores.scores.GetByAccount(ctx, "run-test", "0xA")
	if err != nil {
		t.Fatalf("GetByAccount 0xA failed: %v", err)
	}
	scoreB, err := stores.scores.GetByAccount(ctx, "run-test", "0xB")
	if err != nil {
		t.Fatalf("GetByAccount 0xB failed: %v", err)
	}
	if scoreA.Score >= 50 {
		t.Errorf("0xA (label 0) scored %v, want < 50", scoreA.Score)
	}
	if scoreB.Score <= 50 {
		t.Errorf("0xB (label 1) scored %v, want > 50", scoreB.Score)
	}

	features, err := os.ReadFile(filepath.Join(cfg.Output.Dir, reporting.FeaturesFile))
	if err != nil {
		t.Fatalf("read features: %v", err)
	}
	if !bytes.Contains(features, []byte("\n0xA,15,5,0,3,5,1,1,0,")) {
		t.Errorf("wallet_features.csv missing 0xA row with label 0")
	}
	if !bytes.Contains(features, []byte("\n0xB,15,3,0,5,3,5,1,1,")) {
		t.Errorf("wallet_features.csv missing 0xB row with label 1")
	}
}

func TestScoringPipeline_Deterministic(t *testing.T) {
	ctx := context.Background()
	paths := writeFixtures(t)

	var outputs []map[string]string
	for run, parallelism := range []int{1, 4} {
		cfg := testConfig(t)
		cfg.Training.Parallelism = parallelism

		if _, err := newTestPipeline(cfg).Run(ctx, paths); err != nil {
			t.Fatalf("Run %d failed: %v", run, err)
		}

		files := make(map[string]string)
		for _, f := range []string{reporting.ScoresFile, reporting.FeaturesFile, reporting.ModelFile, reporting.ReportFile} {
			data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, f))
			if err != nil {
				t.Fatalf("Run %d: read %s: %v", run, f, err)
			}
			files[f] = string(data)
		}
		outputs = append(outputs, files)
	}

	for name, content := range outputs[0] {
		if outputs[1][name] != content {
			t.Errorf("%s differs between runs", name)
		}
	}
}

func TestScoringPipeline_Selections(t *testing.T) {
	ctx := context.Background()
	paths := writeFixtures(t)

	for _, selection := range []string{domain.SelectionRefit, domain.SelectionEnsemble, domain.SelectionLastFold} {
		t.Run(selection, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Model.Selection = selection

			result, err := newTestPipeline(cfg).Run(ctx, paths)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if result.Model.Selection != selection {
				t.Errorf("model selection = %q", result.Model.Selection)
			}

			wantModels := 1
			if selection == domain.SelectionEnsemble {
				wantModels = cfg.Training.Folds
			}
			if len(result.Model.Models) != wantModels {
				t.Errorf("expected %d models, got %d", wantModels, len(result.Model.Models))
			}
		})
	}
}

func TestScoringPipeline_InsufficientClassSamples(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	stores := newMemoryStores()

	// Every wallet has a single deposit: all are labeled risky.
	path := writeDocument(t, "deposits.json", `{"deposits": [
		{"amountUSD": "50", "timestamp": 1704067200, "account": {"id": "0x1"}, "asset": {"symbol": "USDC"}},
		{"amountUSD": "50", "timestamp": 1704067200, "account": {"id": "0x2"}, "asset": {"symbol": "USDC"}},
		{"amountUSD": "50", "timestamp": 1704067200, "account": {"id": "0x3"}, "asset": {"symbol": "USDC"}},
		{"amountUSD": "50", "timestamp": 1704067200, "account": {"id": "0x4"}, "asset": {"symbol": "USDC"}},
		{"amountUSD": "50", "timestamp": 1704067200, "account": {"id": "0x5"}, "asset": {"symbol": "USDC"}}
	]}`)

	_, err := newTestPipeline(cfg).WithStores(stores.Stores()).Run(ctx, []string{path})
	if !errors.Is(err, domain.ErrInsufficientClassSamples) {
		t.Fatalf("expected ErrInsufficientClassSamples, got %v", err)
	}

	assertNoOutput(t, cfg.Output.Dir)
	if _, err := stores.runs.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no run record, got %v", err)
	}
}

func TestScoringPipeline_MalformedAmount(t *testing.T) {
	cfg := testConfig(t)
	path := writeDocument(t, "bad.json", `{"deposits": [
		{"amountUSD": "5", "timestamp": 0, "account": {"id": "0xA"}, "asset": {"symbol": "USDC"}},
		{"amountUSD": "five", "timestamp": 0, "account": {"id": "0xA"}, "asset": {"symbol": "USDC"}}
	]}`)

	_, err := newTestPipeline(cfg).Run(context.Background(), []string{path})
	if !errors.Is(err, domain.ErrMalformedAmount) {
		t.Fatalf("expected ErrMalformedAmount, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad.json: deposit 1") {
		t.Errorf("error should name file and index: %v", err)
	}
	assertNoOutput(t, cfg.Output.Dir)
}

func TestScoringPipeline_MissingDepositsArray(t *testing.T) {
	cfg := testConfig(t)
	path := writeDocument(t, "empty.json", `{"withdrawals": []}`)

	_, err := newTestPipeline(cfg).Run(context.Background(), []string{path})
	if !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	assertNoOutput(t, cfg.Output.Dir)
}

func TestScoringPipeline_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline(cfg).Run(ctx, writeFixtures(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assertNoOutput(t, cfg.Output.Dir)
}

func TestScoringPipeline_Metrics(t *testing.T) {
	ctx := context.Background()
	m := observability.NewMetrics("test")

	cfg := testConfig(t)
	result, err := newTestPipeline(cfg).WithMetrics(m).WithStores(newMemoryStores().Stores()).Run(ctx, writeFixtures(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues(observability.StatusSuccess)); got != 1 {
		t.Errorf("runs_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WalletsScored); got != 42 {
		t.Errorf("wallets_scored = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.DepositsLoaded); got != float64(result.Run.DepositCount) {
		t.Errorf("deposits_loaded_total = %v, want %d", got, result.Run.DepositCount)
	}
	if got := testutil.ToFloat64(m.ReliableWallets); got != float64(result.Run.ReliableCount) {
		t.Errorf("reliable_wallets = %v, want %d", got, result.Run.ReliableCount)
	}
	if got := testutil.ToFloat64(m.OOFAccuracy); got != result.Evaluation.Accuracy {
		t.Errorf("oof_accuracy = %v, want %v", got, result.Evaluation.Accuracy)
	}
	if got := testutil.CollectAndCount(m.FoldAccuracy); got != cfg.Training.Folds {
		t.Errorf("fold_accuracy series = %d, want %d", got, cfg.Training.Folds)
	}
	if got := testutil.CollectAndCount(m.DBQueryDuration); got != 3 {
		t.Errorf("query_duration series = %d, want 3", got)
	}

	// A failing run is counted too.
	cfg = testConfig(t)
	if _, err := newTestPipeline(cfg).WithMetrics(m).Run(ctx, []string{filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatal("expected error for missing input")
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues(observability.StatusError)); got != 1 {
		t.Errorf("runs_total{error} = %v, want 1", got)
	}
}

func TestScoringPipeline_DuplicateRunID(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	paths := writeFixtures(t)

	if _, err := newTestPipeline(testConfig(t)).WithStores(stores.Stores()).Run(ctx, paths); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	cfg := testConfig(t)
	_, err := newTestPipeline(cfg).WithStores(stores.Stores()).Run(ctx, paths)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for a reused run id, got %v", err)
	}
	// Persisting precedes publishing: the rejected run leaves no artifacts.
	assertNoOutput(t, cfg.Output.Dir)
}

// failingScoreStore rejects every insert.
type failingScoreStore struct {
	*memory.CreditScoreStore
}

func (failingScoreStore) InsertBulk(context.Context, []*domain.CreditScore) error {
	return errors.New("connection reset")
}

func TestScoringPipeline_StoreFailureKeepsPreviousOutput(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	paths := writeFixtures(t)

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	previous := filepath.Join(cfg.Output.Dir, reporting.ScoresFile)
	if err := os.WriteFile(previous, []byte("account_id,credit_score\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stores := Stores{Scores: []storage.CreditScoreStore{failingScoreStore{memory.NewCreditScoreStore()}}}
	_, err := newTestPipeline(cfg).WithStores(stores).Run(ctx, paths)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected store error, got %v", err)
	}

	data, err := os.ReadFile(previous)
	if err != nil {
		t.Fatalf("previous output lost: %v", err)
	}
	if string(data) != "account_id,credit_score\n" {
		t.Errorf("previous output overwritten: %q", data)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, reporting.ReportFile)); !os.IsNotExist(err) {
		t.Errorf("%s should not be published after a store failure", reporting.ReportFile)
	}
	entries, _ := os.ReadDir(filepath.Dir(cfg.Output.Dir))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".staging-") {
			t.Errorf("leftover staging dir %s", e.Name())
		}
	}
}

func assertNoOutput(t *testing.T, dir string) {
	t.Helper()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("output dir %s should not exist, stat err: %v", dir, err)
	}
	entries, err := os.ReadDir(filepath.Dir(dir))
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".staging-") {
			t.Errorf("leftover staging dir %s", e.Name())
		}
	}
}
