package ancestry

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/genomatch/internal/metrics"
	"github.com/inodb/genomatch/internal/output"
	"github.com/inodb/genomatch/internal/vcf"
)

const qopt7 = "French Han Chukchi Karitiana Papuan Sindhi YRI\n" +
	"0.6 0.1 0.05 0.05 0.1 0.1 0\n"

const oneSampleVCF = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
	"1\t100\trs1\tC\tT\t.\t.\t.\tGT\t0/1\n"

const twoSampleVCF = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n" +
	"1\t100\trs1\tC\tT\t.\t.\t.\tGT\t0/1\t1/1\n"

// fakeRunner imitates plink and fastNGSadmix by writing their output files.
type fakeRunner struct {
	calls    [][]string
	vcfs     []string
	plinkErr error
	noBed    bool
	qopt     string
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	switch name {
	case "plink":
		data, err := os.ReadFile(argAfter(args, "--vcf"))
		if err != nil {
			return nil, nil, err
		}
		f.vcfs = append(f.vcfs, string(data))
		if f.plinkErr != nil {
			return []byte("PLINK v1.9"), []byte("Error: invalid vcf"), f.plinkErr
		}
		out := argAfter(args, "--out")
		for _, ext := range plinkOutputs {
			if ext == ".bed" && f.noBed {
				continue
			}
			if err := os.WriteFile(out+ext, nil, 0o644); err != nil {
				return nil, nil, err
			}
		}
	case "fastNGSadmix":
		if f.qopt != "" {
			out := argAfter(args, "-out")
			if err := os.WriteFile(out+qoptExtension, []byte(f.qopt), 0o644); err != nil {
				return nil, nil, err
			}
		}
	}
	return []byte("ok"), nil, nil
}

func newTestPredictor(t *testing.T, r Runner) (*Predictor, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	p := NewPredictor(cfg)
	p.SetRunner(r)
	return p, cfg.TempDir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "working directory is removed")
}

func TestPredict(t *testing.T) {
	r := &fakeRunner{qopt: qopt7}
	p, tmp := newTestPredictor(t, r)
	m := metrics.New()
	p.SetMetrics(m)

	pred, err := p.Predict(context.Background(), vcf.BytesSource(oneSampleVCF))
	require.NoError(t, err)

	assert.Len(t, pred, 7)
	assert.Equal(t, 0.6, pred["French"])
	assert.Equal(t, 0.0, pred["YRI"])
	best, score := pred.Best()
	assert.Equal(t, "French", best)
	assert.Equal(t, 0.6, score)

	require.Len(t, r.calls, 2)
	assert.Equal(t, "plink", r.calls[0][0])
	assert.Contains(t, r.calls[0], "--make-bed")
	assert.Equal(t, "fastNGSadmix", r.calls[1][0])
	assert.Equal(t, "nInd_humanOrigins_7worldPops.txt", argAfter(r.calls[1], "-Nname"))
	assert.Equal(t, "refPanel_humanOrigins_7worldPops.txt", argAfter(r.calls[1], "-fname"))
	assert.Equal(t, "all", argAfter(r.calls[1], "-whichPops"))
	assert.Equal(t, argAfter(r.calls[0], "--out"), argAfter(r.calls[1], "-plink"))
	assert.Equal(t, oneSampleVCF, r.vcfs[0])

	assertEmptyDir(t, tmp)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues(metrics.OutcomeOK)))
}

func TestPredict_RejectsSampleCount(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no samples", "##fileformat=VCFv4.2\n" +
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
			"1\t100\trs1\tC\tT\t.\t.\t.\n", "Number of samples: 0"},
		{"two samples", twoSampleVCF, "Number of samples: 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{qopt: qopt7}
			p, tmp := newTestPredictor(t, r)
			m := metrics.New()
			p.SetMetrics(m)

			_, err := p.Predict(context.Background(), vcf.BytesSource(tt.src))
			require.ErrorIs(t, err, vcf.ErrSampleCount)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, r.calls, "no tool is run")
			assertEmptyDir(t, tmp)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues(metrics.OutcomeFailed)))
		})
	}
}

func TestPredict_NoResultDegradesToZero(t *testing.T) {
	r := &fakeRunner{}
	p, tmp := newTestPredictor(t, r)
	m := metrics.New()
	p.SetMetrics(m)

	pred, err := p.Predict(context.Background(), vcf.BytesSource(oneSampleVCF))
	require.NoError(t, err)

	assert.Equal(t, Prediction{
		"French": 0, "Han": 0, "Chukchi": 0, "Karitiana": 0, "Papuan": 0, "Sindhi": 0, "YRI": 0,
	}, pred)
	best, _ := pred.Best()
	assert.Empty(t, best)
	assertEmptyDir(t, tmp)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues(metrics.OutcomeDegraded)))
}

func TestPredict_PlinkFailure(t *testing.T) {
	r := &fakeRunner{plinkErr: errors.New("exit status 2")}
	p, tmp := newTestPredictor(t, r)
	m := metrics.New()
	p.SetMetrics(m)

	_, err := p.Predict(context.Background(), vcf.BytesSource(oneSampleVCF))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolFailed))

	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "plink", te.Tool)
	assert.Equal(t, "PLINK v1.9", te.Stdout)
	assert.Equal(t, "Error: invalid vcf", te.Stderr)
	assert.Contains(t, err.Error(), "Error: invalid vcf")

	assert.Len(t, r.calls, 1, "fastNGSadmix is not run")
	assertEmptyDir(t, tmp)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolFailures.WithLabelValues("plink")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues(metrics.OutcomeFailed)))
}

func TestPredict_MissingPlinkOutput(t *testing.T) {
	r := &fakeRunner{noBed: true, qopt: qopt7}
	p, _ := newTestPredictor(t, r)

	_, err := p.Predict(context.Background(), vcf.BytesSource(oneSampleVCF))
	require.Error(t, err)
	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "plink", te.Tool)
	assert.Contains(t, err.Error(), "plink.bed")
	assert.Len(t, r.calls, 1)
}

func TestPredict_MismatchedQopt(t *testing.T) {
	r := &fakeRunner{qopt: "French Han Papuan\n0.7 0.3\n"}
	p, _ := newTestPredictor(t, r)

	pred, err := p.Predict(context.Background(), vcf.BytesSource(oneSampleVCF))
	require.NoError(t, err)
	assert.Equal(t, Prediction{"French": 0.7, "Han": 0.3}, pred)
}

func TestPredictUpload(t *testing.T) {
	r := &fakeRunner{qopt: qopt7}
	p, _ := newTestPredictor(t, r)

	preds, err := p.PredictUpload(context.Background(), vcf.BytesSource(twoSampleVCF))
	require.NoError(t, err)
	assert.Len(t, preds, 2)
	assert.Contains(t, preds, "S1")
	assert.Contains(t, preds, "S2")

	require.Len(t, r.vcfs, 2)
	assert.Contains(t, r.vcfs[0], "FORMAT\tS1\n")
	assert.Contains(t, r.vcfs[0], "GT\t0/1\n")
	assert.Contains(t, r.vcfs[1], "FORMAT\tS2\n")
	assert.Contains(t, r.vcfs[1], "GT\t1/1\n")
}

type fakeSamples struct {
	doc       *output.Document
	predicted map[string]string
}

func (f *fakeSamples) SampleDocument(_ context.Context, cypher string) (*output.Document, error) {
	if f.doc == nil || f.doc.Samples[0] != cypher {
		return nil, errors.New("not found")
	}
	return f.doc, nil
}

func (f *fakeSamples) SetPredictedNationality(_ context.Context, cypher, nationality string) error {
	f.predicted[cypher] = nationality
	return nil
}

func TestPredictSample(t *testing.T) {
	doc := output.NewDocument("S1")
	doc.Add(output.Record{Chrom: "1", Pos: 100, ID: "rs1", Ref: "C", Alts: []string{"T"}, Genotypes: []string{"0/1"}})
	store := &fakeSamples{doc: doc, predicted: map[string]string{}}

	r := &fakeRunner{qopt: "French Han\n0.2 0.8\n"}
	p, _ := newTestPredictor(t, r)

	pred, err := p.PredictSample(context.Background(), store, "S1")
	require.NoError(t, err)
	assert.Equal(t, Prediction{"French": 0.2, "Han": 0.8}, pred)
	assert.Equal(t, "Han", store.predicted["S1"])
	assert.True(t, strings.HasPrefix(r.vcfs[0], "##fileformat=VCFv4.3\n"))

	_, err = p.PredictSample(context.Background(), store, "nobody")
	assert.Error(t, err)
}

func TestPredictSample_DegradedIsNotRecorded(t *testing.T) {
	doc := output.NewDocument("S1")
	store := &fakeSamples{doc: doc, predicted: map[string]string{}}
	p, _ := newTestPredictor(t, &fakeRunner{})

	_, err := p.PredictSample(context.Background(), store, "S1")
	require.NoError(t, err)
	assert.Empty(t, store.predicted)
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func execPredictor(t *testing.T, plinkBody, admixBody string, timeout time.Duration) *Predictor {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	bin := t.TempDir()
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.Timeout = timeout
	cfg.Plink = writeScript(t, bin, "plink", plinkBody)
	cfg.FastNGSadmix = writeScript(t, bin, "fastNGSadmix", admixBody)
	return NewPredictor(cfg)
}

const fakePlink = `while [ $# -gt 0 ]; do
  case "$1" in --out) out="$2"; shift;; esac
  shift
done
touch "$out.bed" "$out.bim" "$out.fam"
`

const fakeAdmix = `while [ $# -gt 0 ]; do
  case "$1" in -out) out="$2"; shift;; esac
  shift
done
printf 'French Han\n0.25 0.75\n' > "$out.qopt"
`

func TestExecRunner_Pipeline(t *testing.T) {
	p := execPredictor(t, fakePlink, fakeAdmix, time.Minute)

	pred, err := p.Predict(context.Background(), vcf.BytesSource(oneSampleVCF))
	require.NoError(t, err)
	assert.Equal(t, Prediction{"French": 0.25, "Han": 0.75}, pred)
}

func TestExecRunner_ExitCode(t *testing.T) {
	p := execPredictor(t, fakePlink, "echo 'cannot read panel' >&2\nexit 3\n", time.Minute)

	_, err := p.Predict(context.Background(), vcf.BytesSource(oneSampleVCF))
	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "fastNGSadmix", te.Tool)
	assert.Equal(t, 3, te.ExitCode)
	assert.Equal(t, "cannot read panel\n", te.Stderr)
}

func TestExecRunner_Timeout(t *testing.T) {
	p := execPredictor(t, "exec sleep 10\n", fakeAdmix, 100*time.Millisecond)

	start := time.Now()
	_, err := p.Predict(context.Background(), vcf.BytesSource(oneSampleVCF))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolFailed))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 8*time.Second)
}
