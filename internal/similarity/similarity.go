// Package similarity scores identity-by-state agreement between genotypes.
package similarity

// Score returns the share of alleles common to a stored genotype and a
// candidate genotype: 0, 0.5 or 1.
//
// reference holds the distinct alleles of the stored genotype, so a
// homozygous C/C call is {C}. A single-valued reference scores 1 when every
// candidate allele equals it. Otherwise the score is the size of the
// intersection of the two allele sets divided by two; doubled alleles are
// not counted twice.
func Score(reference, candidate []string) float64 {
	ref := toSet(reference)
	if len(ref) == 1 && allIn(candidate, ref) {
		return 1
	}

	common := 0
	for a := range toSet(candidate) {
		if ref[a] {
			common++
		}
	}
	return float64(common) / 2
}

// AllMissing reports whether every allele of a genotype is unknown. Callers
// score such a genotype as 0 without calling Score.
func AllMissing(alleles []string, missing string) bool {
	for _, a := range alleles {
		if a != missing && a != "" {
			return false
		}
	}
	return true
}

func toSet(alleles []string) map[string]bool {
	s := make(map[string]bool, len(alleles))
	for _, a := range alleles {
		s[a] = true
	}
	return s
}

func allIn(alleles []string, set map[string]bool) bool {
	for _, a := range alleles {
		if !set[a] {
			return false
		}
	}
	return true
}
