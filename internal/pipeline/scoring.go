// Package pipeline runs a scoring batch end to end: load, normalize,
// aggregate, label, cross validate, select, score, explain, publish and
// persist. Every phase is fail-fast; a failure before publishing leaves
// no artifacts and no database rows.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wallet-risk-lab/internal/config"
	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/explain"
	"wallet-risk-lab/internal/features"
	"wallet-risk-lab/internal/idhash"
	"wallet-risk-lab/internal/ingestion"
	"wallet-risk-lab/internal/labeling"
	"wallet-risk-lab/internal/normalization"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/reporting"
	"wallet-risk-lab/internal/scoring"
	"wallet-risk-lab/internal/storage"
	"wallet-risk-lab/internal/validation"
)

// GeneratorVersion is recorded in run records and reports.
const GeneratorVersion = "1.0.0"

// Phase names used for logs and metrics.
const (
	PhaseLoad      = "load"
	PhaseNormalize = "normalize"
	PhaseAggregate = "aggregate"
	PhaseLabel     = "label"
	PhaseValidate  = "cross_validate"
	PhaseSelect    = "select"
	PhaseScore     = "score"
	PhaseExplain   = "explain"
	PhaseRender    = "render"
	PhasePersist   = "persist"
	PhasePublish   = "publish"
)

// Stores groups optional persistence targets. Nil fields are skipped.
type Stores struct {
	Runs     storage.RunStore
	Features storage.WalletFeatureStore
	Scores   []storage.CreditScoreStore
}

// Result is the outcome of a successful run.
type Result struct {
	Run        *domain.RunRecord
	Scores     []*domain.CreditScore // ranked
	Model      *scoring.SelectedModel
	Evaluation validation.Evaluation
	OutputDir  string
}

// ScoringPipeline orchestrates one scoring run.
type ScoringPipeline struct {
	cfg     *config.Config
	stores  Stores
	metrics *observability.Metrics // optional
	logger  logrus.FieldLogger
	clock   func() time.Time
	newID   func() string
}

// NewScoringPipeline creates a pipeline for cfg. cfg must be valid.
func NewScoringPipeline(cfg *config.Config) *ScoringPipeline {
	return &ScoringPipeline{
		cfg:    cfg,
		logger: logrus.StandardLogger(),
		clock:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// WithStores enables persistence.
func (p *ScoringPipeline) WithStores(stores Stores) *ScoringPipeline {
	p.stores = stores
	return p
}

// WithMetrics enables Prometheus metrics. Metrics are pushed when
// cfg.Metrics.PushgatewayURL is set.
func (p *ScoringPipeline) WithMetrics(m *observability.Metrics) *ScoringPipeline {
	p.metrics = m
	return p
}

// WithLogger sets the logger.
func (p *ScoringPipeline) WithLogger(logger logrus.FieldLogger) *ScoringPipeline {
	p.logger = logger
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *ScoringPipeline) WithClock(clock func() time.Time) *ScoringPipeline {
	p.clock = clock
	return p
}

// WithRunID sets the run id generator.
func (p *ScoringPipeline) WithRunID(newID func() string) *ScoringPipeline {
	p.newID = newID
	return p
}

// runState carries intermediate results between phases.
type runState struct {
	run      *domain.RunRecord
	raw      []domain.RawDeposit
	deposits []domain.NormalizedDeposit
	vectors  []*domain.WalletFeatureVector
	labeled  []*domain.LabeledWallet
	checks   *SufficiencyResult
	x        [][]float64
	y        []int
	cv       *validation.CVResult
	eval     validation.Evaluation
	model    *scoring.SelectedModel
	scores   []*domain.CreditScore
	features []explain.FeatureSummary
	staged   *reporting.Staged
}

// Run scores the deposits found under inputs (paths or glob patterns).
func (p *ScoringPipeline) Run(ctx context.Context, inputs []string) (*Result, error) {
	s := &runState{
		run: &domain.RunRecord{
			RunID:            p.newID(),
			StartedAt:        p.clock(),
			Selection:        p.cfg.Model.Selection,
			Folds:            p.cfg.Training.Folds,
			Seed:             p.cfg.Training.Seed,
			GeneratorVersion: GeneratorVersion,
		},
	}
	logger := p.logger.WithField("run_id", s.run.RunID)
	logger.WithFields(logrus.Fields{
		"inputs":    len(inputs),
		"folds":     s.run.Folds,
		"selection": s.run.Selection,
	}).Info("Starting scoring run")

	err := p.runPhases(ctx, logger, s, inputs)
	if s.staged != nil {
		s.staged.Discard()
	}
	p.finish(ctx, logger, s, err)
	if err != nil {
		return nil, err
	}

	return &Result{
		Run:        s.run,
		Scores:     s.scores,
		Model:      s.model,
		Evaluation: s.eval,
		OutputDir:  p.cfg.Output.Dir,
	}, nil
}

func (p *ScoringPipeline) runPhases(ctx context.Context, logger logrus.FieldLogger, s *runState, inputs []string) error {
	phases := []struct {
		name  string
		title string
		fn    func(context.Context, logrus.FieldLogger, *runState) error
	}{
		{PhaseLoad, "Loading deposit documents", func(ctx context.Context, l logrus.FieldLogger, s *runState) error {
			return p.load(ctx, l, s, inputs)
		}},
		{PhaseNormalize, "Normalizing deposits", p.normalize},
		{PhaseAggregate, "Aggregating wallet features", p.aggregate},
		{PhaseLabel, "Applying label policy", p.label},
		{PhaseValidate, "Cross-validating classifier", p.crossValidate},
		{PhaseSelect, "Selecting deployed model", p.selectModel},
		{PhaseScore, "Scoring wallets", p.score},
		{PhaseExplain, "Explaining scores", p.explain},
		{PhaseRender, "Rendering artifacts", p.render},
		{PhasePersist, "Persisting run", p.persist},
		{PhasePublish, "Publishing artifacts", p.publish},
	}

	for i, ph := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		pl := logger.WithField("phase", ph.name)
		pl.Infof("Phase %d: %s", i+1, ph.title)

		start := time.Now()
		err := ph.fn(ctx, pl, s)
		if p.metrics != nil {
			p.metrics.RecordPhase(ph.name, time.Since(start))
		}
		if err != nil {
			return fmt.Errorf("%s: %w", ph.name, err)
		}
	}
	return nil
}

func (p *ScoringPipeline) load(ctx context.Context, logger logrus.FieldLogger, s *runState, inputs []string) error {
	raw, err := ingestion.LoadFiles(ctx, inputs, logger)
	if err != nil {
		return err
	}
	s.raw = raw
	s.run.DepositCount = len(raw)
	s.run.DataVersion = idhash.ComputeDataVersion(raw)

	if p.metrics != nil {
		p.metrics.DepositsLoaded.Add(float64(len(raw)))
	}
	logger.WithFields(logrus.Fields{
		"deposits":     len(raw),
		"data_version": s.run.DataVersion,
	}).Info("Loaded deposits")
	return nil
}

func (p *ScoringPipeline) normalize(_ context.Context, logger logrus.FieldLogger, s *runState) error {
	deposits, err := normalization.Normalize(s.raw)
	if err != nil {
		return err
	}
	s.deposits = deposits
	logger.WithField("deposits", len(deposits)).Info("Normalized deposits")
	return nil
}

func (p *ScoringPipeline) aggregate(_ context.Context, logger logrus.FieldLogger, s *runState) error {
	vectors, err := features.NewAggregator(p.stores.Features).Compute(s.deposits)
	if err != nil {
		return err
	}
	s.vectors = vectors
	s.run.WalletCount = len(vectors)
	logger.WithField("wallets", len(vectors)).Info("Aggregated wallet features")
	return nil
}

func (p *ScoringPipeline) label(_ context.Context, logger logrus.FieldLogger, s *runState) error {
	policy, err := labeling.New(p.cfg.Labeling.Policy, p.cfg.LabelParams())
	if err != nil {
		return err
	}
	s.run.PolicyVersion = labeling.Tag(policy)
	s.labeled = labeling.Apply(policy, s.vectors)

	risky, reliable := labeling.Counts(s.labeled)
	s.run.ReliableCount = reliable
	if p.metrics != nil {
		p.metrics.ReliableWallets.Set(float64(reliable))
	}
	logger.WithFields(logrus.Fields{
		"policy":   s.run.PolicyVersion,
		"risky":    risky,
		"reliable": reliable,
	}).Info("Labeled wallets")

	s.checks = CheckSufficiency(s.labeled, p.cfg.Training.Folds)
	for _, c := range s.checks.Checks {
		logger.WithFields(logrus.Fields{
			"check":     c.Name,
			"threshold": c.Threshold,
			"actual":    c.Actual,
			"pass":      c.Pass,
		}).Debug("Sufficiency check")
	}
	if !s.checks.AllPass {
		return fmt.Errorf("%s: %w", s.checks.Failed(), domain.ErrInsufficientClassSamples)
	}
	return nil
}

func (p *ScoringPipeline) crossValidate(ctx context.Context, logger logrus.FieldLogger, s *runState) error {
	s.x = domain.FeatureMatrix(s.vectors)
	s.y = domain.Labels(s.labeled)

	folds, err := validation.NewStratifiedKFold(p.cfg.Training.Folds, p.cfg.Training.Seed).Split(s.y)
	if err != nil {
		return err
	}

	cv, err := validation.NewCrossValidator(p.cfg.TrainParams(), domain.FeatureNames, p.cfg.Training.Parallelism, logger).
		Run(ctx, s.x, s.y, folds)
	if err != nil {
		return err
	}
	s.cv = cv
	s.eval = validation.Evaluate(cv.True, cv.Pred, cv.Proba)
	s.run.OOFAccuracy = s.eval.Accuracy
	s.run.OOFROCAUC = s.eval.ROCAUC

	if p.metrics != nil {
		for _, f := range cv.Folds {
			p.metrics.RecordFold(f.Fold+1, f.Accuracy)
		}
		p.metrics.OOFAccuracy.Set(s.eval.Accuracy)
		p.metrics.OOFROCAUC.Set(s.eval.ROCAUC)
	}
	logger.WithFields(logrus.Fields{
		"accuracy": s.eval.Accuracy,
		"roc_auc":  s.eval.ROCAUC,
	}).Info("Out-of-fold evaluation")
	return nil
}

func (p *ScoringPipeline) selectModel(ctx context.Context, logger logrus.FieldLogger, s *runState) error {
	selector := scoring.Selector{
		Strategy:     p.cfg.Model.Selection,
		Params:       p.cfg.TrainParams(),
		FeatureNames: domain.FeatureNames,
		Policy:       s.run.PolicyVersion,
	}
	model, err := selector.Select(ctx, s.cv, s.x, s.y)
	if err != nil {
		return err
	}
	s.model = model
	logger.WithFields(logrus.Fields{
		"selection": model.Selection,
		"models":    len(model.Models),
	}).Info("Selected model")
	return nil
}

func (p *ScoringPipeline) score(_ context.Context, logger logrus.FieldLogger, s *runState) error {
	s.scores = scoring.Score(s.run.RunID, s.model, s.vectors)
	if p.metrics != nil {
		p.metrics.WalletsScored.Set(float64(len(s.scores)))
	}
	if len(s.scores) > 0 {
		logger.WithFields(logrus.Fields{
			"wallets":   len(s.scores),
			"top":       s.scores[0].AccountID,
			"top_score": s.scores[0].Score,
		}).Info("Scored wallets")
	}
	return nil
}

func (p *ScoringPipeline) explain(_ context.Context, logger logrus.FieldLogger, s *runState) error {
	attrs := explain.Explain(s.model.Models, s.vectors)
	s.features = explain.Summarize(s.model.FeatureNames(), s.model.FeatureImportance(), attrs)
	if len(s.features) > 0 {
		logger.WithField("top_feature", s.features[0].Name).Info("Computed feature attributions")
	}
	return nil
}

// render stages every artifact; nothing is visible in the output
// directory until publish.
func (p *ScoringPipeline) render(ctx context.Context, logger logrus.FieldLogger, s *runState) error {
	s.run.FinishedAt = p.clock()

	in := reporting.Input{
		Run: reporting.RunMetadata{
			RunID:            s.run.RunID,
			DataVersion:      s.run.DataVersion,
			PolicyVersion:    s.run.PolicyVersion,
			Selection:        s.run.Selection,
			Folds:            s.run.Folds,
			Seed:             s.run.Seed,
			GeneratorVersion: s.run.GeneratorVersion,
		},
		Raw:        s.raw,
		Deposits:   s.deposits,
		Labeled:    s.labeled,
		Checks:     s.checks.Rows(),
		CV:         s.cv,
		Evaluation: s.eval,
		Features:   s.features,
		Scores:     s.scores,
		TopN:       p.cfg.Output.TopN,
	}
	report := reporting.NewGenerator().WithClock(p.clock).Generate(in)

	artifacts := reporting.RunArtifacts(report, in, s.model)
	staged, err := reporting.NewPublisher(p.cfg.Output.Dir).Stage(ctx, artifacts)
	if err != nil {
		return err
	}
	s.staged = staged
	logger.WithField("artifacts", len(artifacts)).Info("Rendered artifacts")
	return nil
}

func (p *ScoringPipeline) publish(_ context.Context, logger logrus.FieldLogger, s *runState) error {
	if err := s.staged.Commit(); err != nil {
		return err
	}
	logger.WithField("output_dir", p.cfg.Output.Dir).Info("Published artifacts")
	return nil
}

// persist writes the run record first so score rows can reference it.
func (p *ScoringPipeline) persist(ctx context.Context, logger logrus.FieldLogger, s *runState) error {
	if p.stores.Runs != nil {
		if err := p.timed("scoring_runs", "insert", func() error {
			return p.stores.Runs.Insert(ctx, s.run)
		}); err != nil {
			return fmt.Errorf("store run record: %w", err)
		}
	}

	if p.stores.Features != nil {
		agg := features.NewAggregator(p.stores.Features)
		if err := p.timed("wallet_features", "insert_bulk", func() error {
			return agg.Store(ctx, s.run.RunID, s.vectors)
		}); err != nil {
			return err
		}
	}

	for _, store := range p.stores.Scores {
		if err := p.timed("credit_scores", "insert_bulk", func() error {
			return store.InsertBulk(ctx, s.scores)
		}); err != nil {
			return fmt.Errorf("store credit scores: %w", err)
		}
	}

	logger.WithFields(logrus.Fields{
		"run_record":   p.stores.Runs != nil,
		"features":     p.stores.Features != nil,
		"score_stores": len(p.stores.Scores),
	}).Info("Persisted run")
	return nil
}

func (p *ScoringPipeline) timed(store, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if p.metrics != nil {
		p.metrics.RecordDBQuery(store, operation, time.Since(start), err)
	}
	return err
}

// finish records the run outcome and pushes metrics. A failed push is
// logged and does not fail the run.
func (p *ScoringPipeline) finish(ctx context.Context, logger logrus.FieldLogger, s *runState, runErr error) {
	status := observability.StatusSuccess
	if runErr != nil {
		status = observability.StatusError
		logger.WithError(runErr).Error("Scoring run failed")
	} else {
		logger.WithFields(logrus.Fields{
			"wallets":  s.run.WalletCount,
			"accuracy": s.run.OOFAccuracy,
		}).Info("Scoring run complete")
	}

	if p.metrics == nil {
		return
	}
	p.metrics.RecordRun(status, p.clock())

	if url := p.cfg.Metrics.PushgatewayURL; url != "" {
		if err := p.metrics.Push(context.WithoutCancel(ctx), url, p.cfg.Metrics.Job, s.run.RunID); err != nil {
			logger.WithError(err).Warn("Failed to push metrics")
		}
	}
}
