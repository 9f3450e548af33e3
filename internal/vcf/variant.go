// Package vcf provides VCF file parsing functionality.
package vcf

// MissingIndex marks an allele index written as "." in a GT field.
const MissingIndex = -1

// MissingAllele is the allele value recorded for a missing allele index.
const MissingAllele = "."

// Variant represents a single genomic variant from a VCF file.
type Variant struct {
	Chrom     string     // Chromosome name (e.g., "12", "chr12"); empty if missing
	Pos       int64      // 1-based genomic position; 0 if missing
	ID        string     // Variant identifier (e.g., rs ID); empty if "."
	Ref       string     // Reference allele; empty if missing
	Alts      []string   // Alternate alleles; nil if missing
	Qual      float64    // Quality score
	Filter    string     // Filter status (PASS or filter name)
	Info      string     // Raw INFO column
	Genotypes []Genotype // One call per header sample, in header order
}

// Genotype is one sample's GT call as allele indices.
type Genotype struct {
	Indices []int
	Phased  bool
}

// IsMissing reports whether every allele index of the call is unknown.
func (g Genotype) IsMissing() bool {
	for _, i := range g.Indices {
		if i != MissingIndex {
			return false
		}
	}
	return true
}

// Alt returns the first alternate allele, or "" if there is none.
func (v *Variant) Alt() string {
	if len(v.Alts) == 0 {
		return ""
	}
	return v.Alts[0]
}

// IsIncomplete reports whether a required field (chromosome, position,
// reference or alternate allele) is missing.
func (v *Variant) IsIncomplete() bool {
	return v.Chrom == "" || v.Pos <= 0 || v.Ref == "" || v.Alt() == ""
}

// Allele returns the allele sequence for an allele index: 0 is the
// reference, k is the k-th alternate. Missing or out of range indices
// yield MissingAllele.
func (v *Variant) Allele(index int) string {
	switch {
	case index == 0:
		return v.Ref
	case index > 0 && index <= len(v.Alts):
		return v.Alts[index-1]
	default:
		return MissingAllele
	}
}

// Alleles returns the allele sequences of a genotype call, one per index.
func (v *Variant) Alleles(g Genotype) []string {
	out := make([]string, len(g.Indices))
	for i, idx := range g.Indices {
		out[i] = v.Allele(idx)
	}
	return out
}
