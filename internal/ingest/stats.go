package ingest

import (
	"github.com/inodb/genomatch/internal/duckdb"
	"github.com/inodb/genomatch/internal/vcf"
)

// AlleleCounts counts allele calls: reference matches (index 0), alternate
// alleles and missing alleles.
type AlleleCounts struct {
	Refs    int64
	Alts    int64
	Missing int64
}

func (c *AlleleCounts) add(g vcf.Genotype) {
	for _, idx := range g.Indices {
		switch {
		case idx == vcf.MissingIndex:
			c.Missing++
		case idx == 0:
			c.Refs++
		default:
			c.Alts++
		}
	}
}

// Stats are the allele statistics of a VCF file.
type Stats struct {
	Samples []string
	Records int
	AlleleCounts
	PerSample map[string]*AlleleCounts
}

// UploadStats converts s into the totals stored on an upload.
func (s *Stats) UploadStats() duckdb.UploadStats {
	return duckdb.UploadStats{
		Samples: len(s.Samples),
		Records: s.Records,
		Refs:    s.Refs,
		Alts:    s.Alts,
		Missing: s.Missing,
	}
}

// Statistics reads every record of src and counts its alleles, in total and
// per sample. Incomplete records are counted too.
func Statistics(src vcf.Source) (*Stats, error) {
	p, err := vcf.OpenSource(src)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	s := &Stats{
		Samples:   p.SampleNames(),
		PerSample: make(map[string]*AlleleCounts, len(p.SampleNames())),
	}
	for _, name := range s.Samples {
		s.PerSample[name] = &AlleleCounts{}
	}

	for {
		v, err := p.Next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			break
		}
		s.Records++
		for i, g := range v.Genotypes {
			s.add(g)
			s.PerSample[s.Samples[i]].add(g)
		}
	}
	return s, nil
}
