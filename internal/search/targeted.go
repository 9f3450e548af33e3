// Package search finds stored samples that resemble a set of genotypes,
// either at a few chosen loci or across a whole uploaded genome.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/genomatch/internal/duckdb"
	"github.com/inodb/genomatch/internal/genome"
	"github.com/inodb/genomatch/internal/metrics"
	"github.com/inodb/genomatch/internal/output"
	"github.com/inodb/genomatch/internal/similarity"
)

// LocusStore is the part of the variant store a targeted search reads.
type LocusStore interface {
	ResolveAllele(ctx context.Context, sequence string) error
	SNPsAt(ctx context.Context, chrom genome.Chromosome, pos int64) ([]duckdb.SNP, error)
	ObservationsAt(ctx context.Context, snpID int64) ([]duckdb.Observation, error)
}

// LocusQuery asks for samples carrying a genotype at a position.
type LocusQuery struct {
	Chrom   genome.Chromosome
	Pos     int64
	Allele1 string
	Allele2 string
}

// ParseLocusQuery parses "chrom:pos:allele1/allele2", e.g. "chr7:5000:A/C".
func ParseLocusQuery(s string) (LocusQuery, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return LocusQuery{}, fmt.Errorf("invalid locus query %q: expected chrom:pos:allele1/allele2", s)
	}

	chrom, err := genome.Resolve(parts[0])
	if err != nil {
		return LocusQuery{}, err
	}
	pos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || pos <= 0 {
		return LocusQuery{}, fmt.Errorf("invalid position %q in locus query %q", parts[1], s)
	}
	alleles := strings.Split(parts[2], "/")
	if len(alleles) != 2 || alleles[0] == "" || alleles[1] == "" {
		return LocusQuery{}, fmt.Errorf("invalid genotype %q in locus query %q", parts[2], s)
	}

	return LocusQuery{Chrom: chrom, Pos: pos, Allele1: alleles[0], Allele2: alleles[1]}, nil
}

func (q LocusQuery) String() string {
	return fmt.Sprintf("%s:%d %s/%s", q.Chrom, q.Pos, q.Allele1, q.Allele2)
}

// Match is one stored variant that shares alleles with a query.
type Match struct {
	Sample   string
	Genotype string // display genotype, e.g. "C, T"
	Score    float64
}

// QueryResult holds the matches of one query, best first.
type QueryResult struct {
	Query   LocusQuery
	Matches []Match
}

// TargetedResult holds per-query matches and each sample's average score
// over all queries.
type TargetedResult struct {
	Queries []QueryResult
	Samples map[string]float64
}

// Ranking returns the samples ordered by descending average score.
func (r *TargetedResult) Ranking() []output.Scored {
	return output.Rank(r.Samples)
}

// Targeted answers multi-locus genotype queries.
type Targeted struct {
	store   LocusStore
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewTargeted creates a targeted search over s.
func NewTargeted(s LocusStore) *Targeted {
	return &Targeted{store: s, logger: zap.NewNop()}
}

// SetLogger sets the logger for debug messages.
func (t *Targeted) SetLogger(l *zap.Logger) {
	t.logger = l
}

// SetMetrics sets the registry that answered queries are counted on.
func (t *Targeted) SetMetrics(m *metrics.Registry) {
	t.metrics = m
}

// Search scores every stored variant at each query position against the
// query genotype. A query allele that was never stored fails the whole
// search with a duckdb.UnknownAlleleError.
//
// A sample's average is the sum of its best score per query divided by the
// number of queries, rounded to 4 decimals.
func (t *Targeted) Search(ctx context.Context, queries []LocusQuery) (*TargetedResult, error) {
	res := &TargetedResult{Samples: make(map[string]float64)}
	if len(queries) == 0 {
		return res, nil
	}

	sums := make(map[string]float64)
	for _, q := range queries {
		qr, err := t.searchOne(ctx, q)
		if err != nil {
			return nil, err
		}
		res.Queries = append(res.Queries, qr)

		best := make(map[string]float64)
		for _, m := range qr.Matches {
			if m.Score > best[m.Sample] {
				best[m.Sample] = m.Score
			}
		}
		for sample, score := range best {
			sums[sample] += score
		}
	}

	for sample, sum := range sums {
		res.Samples[sample] = round4(sum / float64(len(queries)))
	}
	t.metrics.Searched(len(queries))
	return res, nil
}

func (t *Targeted) searchOne(ctx context.Context, q LocusQuery) (QueryResult, error) {
	qr := QueryResult{Query: q}
	for _, a := range []string{q.Allele1, q.Allele2} {
		if err := t.store.ResolveAllele(ctx, a); err != nil {
			return qr, err
		}
	}

	snps, err := t.store.SNPsAt(ctx, q.Chrom, q.Pos)
	if err != nil {
		return qr, err
	}

	genotype := []string{q.Allele1, q.Allele2}
	for _, snp := range snps {
		obs, err := t.store.ObservationsAt(ctx, snp.ID)
		if err != nil {
			return qr, err
		}
		for _, o := range obs {
			score := similarity.Score(o.Alleles, genotype)
			if score == 0 {
				continue
			}
			qr.Matches = append(qr.Matches, Match{
				Sample:   o.Sample,
				Genotype: o.GenotypeString(),
				Score:    score,
			})
		}
	}

	sort.SliceStable(qr.Matches, func(i, j int) bool {
		return qr.Matches[i].Score > qr.Matches[j].Score
	})
	t.logger.Debug("locus searched",
		zap.Stringer("query", q),
		zap.Int("loci", len(snps)),
		zap.Int("matches", len(qr.Matches)))
	return qr, nil
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
