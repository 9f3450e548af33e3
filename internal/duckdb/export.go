package duckdb

import (
	"context"

	"github.com/inodb/genomatch/internal/output"
)

// SampleDocument re-serializes a stored sample as a single-sample VCF with
// one line per stored variant. Returns ErrNotFound for an unknown sample.
func (q *Queries) SampleDocument(ctx context.Context, cypher string) (*output.Document, error) {
	if _, err := q.GetSample(ctx, cypher); err != nil {
		return nil, err
	}

	variants, err := q.SampleVariants(ctx, cypher)
	if err != nil {
		return nil, err
	}

	doc := output.NewDocument(cypher)
	for _, v := range variants {
		doc.Add(output.Record{
			Chrom:     v.SNP.Chrom.String(),
			Pos:       v.SNP.Pos,
			ID:        v.SNP.Name,
			Ref:       v.SNP.Ref,
			Alts:      []string{v.SNP.Alt},
			Genotypes: []string{v.Genotype},
		})
	}
	return doc, nil
}
