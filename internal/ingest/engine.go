// Package ingest streams VCF files into the variant store.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/genomatch/internal/duckdb"
	"github.com/inodb/genomatch/internal/metrics"
	"github.com/inodb/genomatch/internal/vcf"
)

// progressEvery is how often ingestion progress is logged, in records.
const progressEvery = 100

// State is a step of the per-file ingestion state machine.
type State int

const (
	AwaitingFirstRecord State = iota
	Ingesting
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingFirstRecord:
		return "awaiting_first_record"
	case Ingesting:
		return "ingesting"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result summarizes one ingested file.
type Result struct {
	UploadID     string
	State        State
	Reason       string   // why ingestion was aborted
	NewSamples   []string // samples created by this file, in header order
	KnownSamples []string // samples that already existed and were ignored
	Records      int      // records stored
	Skipped      int      // incomplete records skipped
	Variants     int      // variant observations created
	Conflicts    int      // SNP name conflicts seen
}

// Engine ingests VCF sources into a Store.
type Engine struct {
	store   *duckdb.Store
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewEngine creates an engine writing to s.
func NewEngine(s *duckdb.Store) *Engine {
	return &Engine{
		store:  s,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and progress messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetMetrics sets the registry that ingestion counters are recorded on.
func (e *Engine) SetMetrics(m *metrics.Registry) {
	e.metrics = m
}

// Upload validates the file at path, registers it as a provisional upload
// and stores its allele statistics.
func (e *Engine) Upload(ctx context.Context, path string) (*duckdb.Upload, error) {
	src := vcf.FileSource(path)
	if err := vcf.Validate(src); err != nil {
		return nil, err
	}

	stats, err := Statistics(src)
	if err != nil {
		return nil, err
	}

	var u *duckdb.Upload
	err = e.store.InTx(ctx, func(q *duckdb.Queries) error {
		var err error
		if u, err = q.RegisterUpload(ctx, path); err != nil {
			return err
		}
		u.Stats = stats.UploadStats()
		return q.SetUploadStats(ctx, u.ID, u.Stats)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("registered upload",
		zap.String("id", u.ID),
		zap.String("path", path),
		zap.Int("samples", u.Stats.Samples),
		zap.Int("records", u.Stats.Records))
	return u, nil
}

// Ingest merges every record of src into the store inside one transaction.
// If uploadID is not empty the upload is marked committed in the same
// transaction, including when ingestion is aborted because the file carries
// no new information. Any error rolls back every change made for the file.
func (e *Engine) Ingest(ctx context.Context, uploadID string, src vcf.Source) (*Result, error) {
	res := &Result{UploadID: uploadID, State: AwaitingFirstRecord}

	err := e.store.InTx(ctx, func(q *duckdb.Queries) error {
		p, err := vcf.OpenSource(src)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := e.run(ctx, q, p, res); err != nil {
			return err
		}
		if uploadID != "" {
			if err := q.MarkCommitted(ctx, uploadID); err != nil {
				return fmt.Errorf("mark upload %s committed: %w", uploadID, err)
			}
		}
		return nil
	})
	if err != nil {
		e.metrics.FileIngested(metrics.StateFailed)
		return nil, err
	}

	e.metrics.FileIngested(res.State.String())
	e.metrics.RecordsIngested(res.Records, res.Skipped, res.Variants)
	e.logger.Info("file ingested",
		zap.String("upload", uploadID),
		zap.Stringer("state", res.State),
		zap.Int("records", res.Records),
		zap.Int("skipped", res.Skipped),
		zap.Int("variants", res.Variants))
	return res, nil
}

func (e *Engine) run(ctx context.Context, q *duckdb.Queries, p vcf.VariantParser, res *Result) error {
	var samples map[string]bool
	names := p.SampleNames()

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, err := p.Next()
		if err != nil {
			return err
		}
		if v == nil {
			break
		}

		if res.State == AwaitingFirstRecord {
			if len(names) == 0 {
				e.logger.Warn("no samples detected")
				return e.abort(res, "no samples")
			}
			if samples, err = e.parseSamples(ctx, q, names, res); err != nil {
				return err
			}
			if len(samples) == 0 {
				e.logger.Info("no new samples detected")
				return e.abort(res, "no new samples")
			}
			res.State = Ingesting
		}

		if n%progressEvery == 1 {
			e.logger.Debug("records processed", zap.Int("n", n))
		}

		if err := e.storeRecord(ctx, q, v, names, samples, res); err != nil {
			return fmt.Errorf("line %d: %w", p.LineNumber(), err)
		}
	}

	if res.State == AwaitingFirstRecord {
		return e.abort(res, "no records")
	}
	res.State = Done
	return nil
}

func (e *Engine) abort(res *Result, reason string) error {
	e.logger.Info("ingestion aborted", zap.String("reason", reason))
	res.State = Aborted
	res.Reason = reason
	return nil
}

// parseSamples creates the header samples. Only newly created samples are
// returned; samples that already exist are reported and ignored.
func (e *Engine) parseSamples(ctx context.Context, q *duckdb.Queries, names []string, res *Result) (map[string]bool, error) {
	samples := make(map[string]bool, len(names))
	for _, name := range names {
		_, created, err := q.GetOrCreateSample(ctx, name, res.UploadID)
		if err != nil {
			return nil, err
		}
		if !created {
			e.logger.Warn("sample already exists, ignoring", zap.String("sample", name))
			res.KnownSamples = append(res.KnownSamples, name)
			continue
		}
		samples[name] = true
		res.NewSamples = append(res.NewSamples, name)
	}
	return samples, nil
}

func (e *Engine) storeRecord(ctx context.Context, q *duckdb.Queries, v *vcf.Variant, names []string, samples map[string]bool, res *Result) error {
	if v.IsIncomplete() {
		res.Skipped++
		return nil
	}

	chrom, err := q.ResolveChromosome(ctx, v.Chrom)
	if err != nil {
		return err
	}
	if err := q.UpsertAllele(ctx, v.Ref); err != nil {
		return err
	}
	if len(v.Alts) > 1 {
		e.logger.Warn("multiple alternative alleles, only the first is stored",
			zap.String("chrom", v.Chrom),
			zap.Int64("pos", v.Pos),
			zap.Strings("alts", v.Alts))
	}
	if err := q.UpsertAllele(ctx, v.Alt()); err != nil {
		return err
	}

	snp, _, err := q.UpsertSNP(ctx, duckdb.SNPKey{Chrom: chrom, Pos: v.Pos, Ref: v.Ref, Alt: v.Alt()}, v.ID)
	if err != nil {
		return err
	}
	if v.ID != "" && snp.Name != v.ID {
		res.Conflicts++
		e.logger.Warn("SNP names' conflict",
			zap.String("old", snp.Name),
			zap.String("new", v.ID))
	}

	for i, name := range names {
		if !samples[name] {
			continue
		}
		var g vcf.Genotype
		if i < len(v.Genotypes) {
			g = v.Genotypes[i]
		}
		if err := e.storeVariant(ctx, q, v, snp.ID, name, g); err != nil {
			return err
		}
		res.Variants++
	}
	res.Records++
	return nil
}

func (e *Engine) storeVariant(ctx context.Context, q *duckdb.Queries, v *vcf.Variant, snpID int64, sample string, g vcf.Genotype) error {
	if len(g.Indices) == 0 {
		g.Indices = []int{vcf.MissingIndex, vcf.MissingIndex}
	}

	genotype := duckdb.EncodeGenotype(g.Indices)
	if err := q.UpsertGenotypeRecord(ctx, genotype); err != nil {
		return err
	}

	alleles := distinct(v.Alleles(g))
	for _, a := range alleles {
		if err := q.UpsertAllele(ctx, a); err != nil {
			return err
		}
	}

	if _, err := q.CreateVariant(ctx, sample, snpID, genotype, alleles); err != nil {
		return err
	}
	return nil
}

func distinct(in []string) []string {
	out := in[:0:0]
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
