// Package ancestry estimates a sample's population admixture by running
// plink and fastNGSadmix against a reference panel.
package ancestry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/genomatch/internal/metrics"
	"github.com/inodb/genomatch/internal/output"
	"github.com/inodb/genomatch/internal/vcf"
)

// File names inside the per-prediction working directory.
const (
	vcfFileName     = "sample.vcf"
	plinkPrefix     = "plink"
	admixPrefix     = "fastngsadmix"
	qoptExtension   = ".qopt"
	plinkToolName   = "plink"
	fastNGSToolName = "fastNGSadmix"
)

// plinkOutputs are the files plink --make-bed must produce.
var plinkOutputs = []string{".bed", ".bim", ".fam"}

// Config configures the external tools and reference files.
type Config struct {
	Plink        string        // plink binary
	FastNGSadmix string        // fastNGSadmix binary
	NIndFile     string        // individuals per reference population
	RefPanel     string        // reference panel allele frequencies
	Timeout      time.Duration // per prediction; 0 disables
	TempDir      string        // parent of working directories; "" uses the OS default
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Plink:        "plink",
		FastNGSadmix: "fastNGSadmix",
		NIndFile:     "nInd_humanOrigins_7worldPops.txt",
		RefPanel:     "refPanel_humanOrigins_7worldPops.txt",
		Timeout:      10 * time.Minute,
	}
}

// Predictor runs the ancestry pipeline.
type Predictor struct {
	cfg     Config
	runner  Runner
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewPredictor creates a predictor that runs the tools as child processes.
func NewPredictor(cfg Config) *Predictor {
	return &Predictor{
		cfg:    cfg,
		runner: ExecRunner{},
		logger: zap.NewNop(),
	}
}

// SetRunner replaces the command runner.
func (p *Predictor) SetRunner(r Runner) {
	p.runner = r
}

// SetLogger sets the logger for progress and diagnostic messages.
func (p *Predictor) SetLogger(l *zap.Logger) {
	p.logger = l
}

// SetMetrics sets the registry that predictions are counted on.
func (p *Predictor) SetMetrics(m *metrics.Registry) {
	p.metrics = m
}

// Predict estimates the admixture of the single sample in src. A source
// that does not declare exactly one sample is rejected with
// vcf.ErrSampleCount before any tool runs.
//
// src is written to a temporary directory that is removed before Predict
// returns. A tool that fails, or plink output that is missing, is reported
// as a *ToolError. If fastNGSadmix succeeds without writing a result file
// the prediction is ZeroPrediction.
func (p *Predictor) Predict(ctx context.Context, src vcf.Source) (Prediction, error) {
	pred, degraded, err := p.predict(ctx, src)
	switch {
	case err != nil:
		p.metrics.Predicted(metrics.OutcomeFailed)
	case degraded:
		p.metrics.Predicted(metrics.OutcomeDegraded)
	default:
		p.metrics.Predicted(metrics.OutcomeOK)
	}
	return pred, err
}

func (p *Predictor) predict(ctx context.Context, src vcf.Source) (Prediction, bool, error) {
	if err := vcf.CheckSingleSample(src); err != nil {
		return nil, false, err
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(p.cfg.TempDir, "genomatch-ancestry-")
	if err != nil {
		return nil, false, fmt.Errorf("create working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	vcfPath := filepath.Join(dir, vcfFileName)
	p.logger.Info("saving vcf", zap.String("path", vcfPath))
	if err := writeSource(vcfPath, src); err != nil {
		return nil, false, err
	}

	plinkOut := filepath.Join(dir, plinkPrefix)
	if err := p.run(ctx, plinkToolName, p.cfg.Plink,
		"--vcf", vcfPath,
		"--make-bed",
		"--recode",
		"--out", plinkOut,
	); err != nil {
		return nil, false, err
	}
	for _, ext := range plinkOutputs {
		if _, err := os.Stat(plinkOut + ext); err != nil {
			p.metrics.ToolFailed(plinkToolName)
			return nil, false, &ToolError{Tool: plinkToolName, Err: fmt.Errorf("missing output %s", plinkPrefix+ext)}
		}
	}

	admixOut := filepath.Join(dir, admixPrefix)
	if err := p.run(ctx, fastNGSToolName, p.cfg.FastNGSadmix,
		"-plink", plinkOut,
		"-Nname", p.cfg.NIndFile,
		"-fname", p.cfg.RefPanel,
		"-out", admixOut,
		"-whichPops", "all",
	); err != nil {
		return nil, false, err
	}

	f, err := os.Open(admixOut + qoptExtension)
	if errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("fastNGSadmix produced no result, returning zero prediction")
		return ZeroPrediction(), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open fastNGSadmix result: %w", err)
	}
	defer f.Close()

	q, err := ParseQopt(f)
	if err != nil {
		return nil, false, err
	}
	if q.Mismatched() {
		p.logger.Warn("populations and scores have different length",
			zap.Int("populations", len(q.Labels)),
			zap.Int("scores", len(q.Scores)))
	}
	pred := q.Prediction()
	p.logger.Debug("predicted populations", zap.Any("prediction", pred))
	return pred, false, nil
}

func (p *Predictor) run(ctx context.Context, tool, bin string, args ...string) error {
	p.logger.Info("running tool", zap.String("tool", tool))
	stdout, stderr, err := p.runner.Run(ctx, bin, args...)
	p.logger.Debug("tool output",
		zap.String("tool", tool),
		zap.ByteString("stdout", stdout),
		zap.ByteString("stderr", stderr))
	if err != nil {
		p.metrics.ToolFailed(tool)
		te := toolError(tool, stdout, stderr, err)
		p.logger.Error("tool failed",
			zap.String("tool", tool),
			zap.Int("exit_code", te.ExitCode),
			zap.ByteString("stderr", stderr),
			zap.Error(err))
		return te
	}
	return nil
}

func writeSource(path string, src vcf.Source) error {
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("open vcf source: %w", err)
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// SampleStore is the part of the variant store used to predict the
// ancestry of a stored sample.
type SampleStore interface {
	SampleDocument(ctx context.Context, cypher string) (*output.Document, error)
	SetPredictedNationality(ctx context.Context, cypher, nationality string) error
}

// PredictSample re-serializes a stored sample, predicts its ancestry and
// records the most probable population on the sample.
func (p *Predictor) PredictSample(ctx context.Context, s SampleStore, cypher string) (Prediction, error) {
	doc, err := s.SampleDocument(ctx, cypher)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", cypher, err)
	}

	p.logger.Info("predicting ancestry for sample", zap.String("sample", cypher))
	pred, err := p.Predict(ctx, doc)
	if err != nil {
		return nil, err
	}

	if best, score := pred.Best(); score > 0 {
		if err := s.SetPredictedNationality(ctx, cypher, best); err != nil {
			return nil, err
		}
	}
	return pred, nil
}

// PredictUpload predicts the ancestry of every sample in src, one sample at
// a time.
func (p *Predictor) PredictUpload(ctx context.Context, src vcf.Source) (map[string]Prediction, error) {
	samples, err := vcf.SampleNames(src)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Prediction, len(samples))
	for _, sample := range samples {
		p.logger.Info("predicting ancestry for uploaded sample", zap.String("sample", sample))
		pred, err := p.Predict(ctx, vcf.SubsetSource{Source: src, Sample: sample})
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", sample, err)
		}
		out[sample] = pred
	}
	return out, nil
}
