package search

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/inodb/genomatch/internal/duckdb"
	"github.com/inodb/genomatch/internal/genome"
	"github.com/inodb/genomatch/internal/metrics"
	"github.com/inodb/genomatch/internal/output"
	"github.com/inodb/genomatch/internal/similarity"
	"github.com/inodb/genomatch/internal/vcf"
)

// ScanStore is the part of the variant store a genome-wide scan reads.
type ScanStore interface {
	SampleNames(ctx context.Context) ([]string, error)
	FindSNP(ctx context.Context, key duckdb.SNPKey) (*duckdb.SNP, error)
	ObservationsAt(ctx context.Context, snpID int64) ([]duckdb.Observation, error)
}

// ScanResult maps every uploaded sample to the average score of every
// stored sample.
type ScanResult struct {
	Records int // records read from the upload
	Unknown int // records whose locus is not stored
	Samples map[string]map[string]float64
}

// Ranking returns the stored samples ordered by descending average score
// against one uploaded sample.
func (r *ScanResult) Ranking(uploaded string) []output.Scored {
	return output.Rank(r.Samples[uploaded])
}

// Scanner compares whole uploaded genomes with every stored sample.
type Scanner struct {
	store   ScanStore
	workers int
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewScanner creates a scanner over s.
func NewScanner(s ScanStore) *Scanner {
	return &Scanner{store: s, logger: zap.NewNop()}
}

// SetWorkers sets the number of scoring goroutines; 0 means one per CPU.
func (s *Scanner) SetWorkers(n int) {
	s.workers = n
}

// SetLogger sets the logger for progress and warning messages.
func (s *Scanner) SetLogger(l *zap.Logger) {
	s.logger = l
}

// SetMetrics sets the registry that scanned records are counted on.
func (s *Scanner) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

// Scan scores every record of src against the stored variants at the same
// locus (chromosome, position, reference and alternate allele).
//
// Every record counts toward every average. A record whose locus is not
// stored, or that cannot be resolved to a locus, scores 0 for all stored
// samples. At a stored locus, a fully missing uploaded genotype scores 0
// and so does a stored sample with no variant there. When a stored sample
// has several variants at one locus the last one recorded is used.
func (s *Scanner) Scan(ctx context.Context, src vcf.Source) (*ScanResult, error) {
	stored, err := s.store.SampleNames(ctx)
	if err != nil {
		return nil, err
	}

	p, err := vcf.OpenSource(src)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	uploaded := p.SampleNames()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan WorkItem, 64)
	var readErr error
	go func() {
		defer close(items)
		for seq := 0; ; seq++ {
			v, err := p.Next()
			if err != nil {
				readErr = err
				return
			}
			if v == nil {
				return
			}
			select {
			case items <- WorkItem{Seq: seq, Variant: v}:
			case <-ctx.Done():
				return
			}
		}
	}()

	res := &ScanResult{}
	sums := make([]map[string]float64, len(uploaded))
	for i := range sums {
		sums[i] = make(map[string]float64, len(stored))
	}

	results := parallelScore(items, s.workers, func(v *vcf.Variant) (bool, []map[string]float64, error) {
		return s.scoreRecord(ctx, v, len(uploaded))
	})
	// orderedCollect drains every result, so the reader goroutine has
	// returned once it does.
	err = orderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			cancel()
			return r.Err
		}
		res.Records++
		if !r.Known {
			res.Unknown++
		}
		for i, scores := range r.Scores {
			for sample, score := range scores {
				sums[i][sample] += score
			}
		}
		if res.Records%progressEvery == 1 {
			s.logger.Info("records processed", zap.Int("n", res.Records))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Samples = make(map[string]map[string]float64, len(uploaded))
	for i, name := range uploaded {
		avg := make(map[string]float64, len(stored))
		for _, sample := range stored {
			avg[sample] = 0
		}
		if res.Records > 0 {
			for sample, sum := range sums[i] {
				avg[sample] = sum / float64(res.Records)
			}
		}
		res.Samples[name] = avg
	}

	s.metrics.Scanned(res.Records)
	s.logger.Info("scan finished",
		zap.Int("records", res.Records),
		zap.Int("unknown", res.Unknown),
		zap.Int("stored_samples", len(stored)))
	return res, nil
}

const progressEvery = 100

// scoreRecord scores one uploaded record. known is false when the record's
// locus is not stored; scores then is nil.
func (s *Scanner) scoreRecord(ctx context.Context, v *vcf.Variant, nUploaded int) (bool, []map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	if v.IsIncomplete() {
		s.logger.Debug("incomplete record treated as unknown locus",
			zap.String("chrom", v.Chrom), zap.Int64("pos", v.Pos))
		return false, nil, nil
	}

	chrom, err := genome.Resolve(v.Chrom)
	if err != nil {
		s.logger.Warn("unresolvable chromosome treated as unknown locus",
			zap.String("chrom", v.Chrom), zap.Int64("pos", v.Pos))
		return false, nil, nil
	}

	snp, err := s.store.FindSNP(ctx, duckdb.SNPKey{Chrom: chrom, Pos: v.Pos, Ref: v.Ref, Alt: v.Alt()})
	if errors.Is(err, duckdb.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}

	obs, err := s.store.ObservationsAt(ctx, snp.ID)
	if err != nil {
		return false, nil, err
	}
	storedAlleles := make(map[string][]string, len(obs))
	for _, o := range obs {
		storedAlleles[o.Sample] = o.Alleles
	}

	scores := make([]map[string]float64, nUploaded)
	for i := range scores {
		if i >= len(v.Genotypes) {
			continue
		}
		candidate := queryAlleles(v, v.Genotypes[i])
		if similarity.AllMissing(candidate, vcf.MissingAllele) {
			continue
		}
		for sample, alleles := range storedAlleles {
			if score := similarity.Score(alleles, candidate); score > 0 {
				if scores[i] == nil {
					scores[i] = make(map[string]float64)
				}
				scores[i][sample] = score
			}
		}
	}
	return true, scores, nil
}

// queryAlleles returns the allele sequences of an uploaded call. Missing
// alleles become "" so that they never match a stored allele.
func queryAlleles(v *vcf.Variant, g vcf.Genotype) []string {
	out := make([]string, len(g.Indices))
	for i, idx := range g.Indices {
		if idx == vcf.MissingIndex {
			continue
		}
		if a := v.Allele(idx); a != vcf.MissingAllele {
			out[i] = a
		}
	}
	return out
}
