package reporting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"wallet-risk-lab/internal/scoring"
)

// Artifact file names.
const (
	ScoresFile         = "wallet_score.csv"
	FeaturesFile       = "wallet_features.csv"
	ModelFile          = "model.json"
	ReportFile         = "REPORT.md"
	ROCPlotFile        = "roc_curve.png"
	PRPlotFile         = "pr_curve.png"
	ImportancePlotFile = "feature_importance.png"
	ConfusionPlotFile  = "confusion_matrix.png"
)

// Artifact is one output file rendered on demand.
type Artifact struct {
	Name   string
	Render func(w io.Writer) error
}

// RunArtifacts lists every file a scoring run publishes.
func RunArtifacts(r *Report, in Input, model *scoring.SelectedModel) []Artifact {
	return []Artifact{
		{Name: ScoresFile, Render: func(w io.Writer) error {
			return WriteScoresCSV(w, r.TopWallets)
		}},
		{Name: FeaturesFile, Render: func(w io.Writer) error {
			return WriteFeaturesCSV(w, in.Labeled, in.Scores)
		}},
		{Name: ModelFile, Render: model.Save},
		{Name: ReportFile, Render: func(w io.Writer) error {
			_, err := io.WriteString(w, RenderMarkdown(r))
			return err
		}},
		{Name: ROCPlotFile, Render: func(w io.Writer) error {
			return WriteROCPlot(w, r.Evaluation.ROC, r.Evaluation.ROCAUC)
		}},
		{Name: PRPlotFile, Render: func(w io.Writer) error {
			return WritePRPlot(w, r.Evaluation.PR, r.Evaluation.AveragePrecision)
		}},
		{Name: ImportancePlotFile, Render: func(w io.Writer) error {
			return WriteImportancePlot(w, r.Features)
		}},
		{Name: ConfusionPlotFile, Render: func(w io.Writer) error {
			return WriteConfusionPlot(w, r.Evaluation.Confusion)
		}},
	}
}

// Publisher writes artifacts into an output directory all-or-nothing.
// Files are rendered in a staging directory next to the output directory,
// and the staging directory replaces the output directory as a whole, so
// files of earlier runs never mix with new ones.
type Publisher struct {
	outputDir string
}

// NewPublisher creates a publisher for outputDir.
func NewPublisher(outputDir string) *Publisher {
	return &Publisher{outputDir: filepath.Clean(outputDir)}
}

// OutputDir returns the destination directory.
func (p *Publisher) OutputDir() string {
	return p.outputDir
}

// Staged holds rendered artifacts that are not yet visible in the output
// directory. Exactly one of Commit or Discard takes effect.
type Staged struct {
	dir       string
	outputDir string
	done      bool
}

// Publish stages every artifact and commits them.
func (p *Publisher) Publish(ctx context.Context, artifacts []Artifact) error {
	staged, err := p.Stage(ctx, artifacts)
	if err != nil {
		return err
	}
	defer staged.Discard()
	return staged.Commit()
}

// Stage renders every artifact into a fresh staging directory. On any
// error the staging directory is removed and the output is untouched.
func (p *Publisher) Stage(ctx context.Context, artifacts []Artifact) (*Staged, error) {
	base := filepath.Base(p.outputDir)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("output dir %q must name a dedicated directory", p.outputDir)
	}

	parent := filepath.Dir(p.outputDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", parent, err)
	}
	dir, err := os.MkdirTemp(parent, "."+base+".staging-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	staged := &Staged{dir: dir, outputDir: p.outputDir}

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			staged.Discard()
			return nil, err
		}
		if a.Name == "" || a.Name != filepath.Base(a.Name) || strings.HasPrefix(a.Name, ".") {
			staged.Discard()
			return nil, fmt.Errorf("invalid artifact name %q", a.Name)
		}
		if err := renderFile(filepath.Join(dir, a.Name), a.Render); err != nil {
			staged.Discard()
			return nil, fmt.Errorf("render %s: %w", a.Name, err)
		}
	}
	if err := os.Chmod(dir, 0o755); err != nil {
		staged.Discard()
		return nil, fmt.Errorf("chmod staging dir: %w", err)
	}
	return staged, nil
}

// Commit replaces the output directory with the staged one. An existing
// output directory is moved aside first and restored if the swap fails.
func (s *Staged) Commit() error {
	if s.done {
		return errors.New("staged artifacts already committed or discarded")
	}

	previous := ""
	if _, err := os.Stat(s.outputDir); err == nil {
		previous = s.dir + ".previous"
		if err := os.Rename(s.outputDir, previous); err != nil {
			return fmt.Errorf("move aside %s: %w", s.outputDir, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.outputDir, err)
	}

	if err := os.Rename(s.dir, s.outputDir); err != nil {
		if previous != "" {
			_ = os.Rename(previous, s.outputDir)
		}
		return fmt.Errorf("publish %s: %w", s.outputDir, err)
	}
	s.done = true

	if previous != "" {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("remove previous output: %w", err)
		}
	}
	return nil
}

// Discard removes the staging directory unless it was committed.
func (s *Staged) Discard() {
	if s.done {
		return
	}
	s.done = true
	_ = os.RemoveAll(s.dir)
}

func renderFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return render(f)
}
