package vcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariant_IsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		v    Variant
		want bool
	}{
		{"complete", Variant{Chrom: "1", Pos: 10, Ref: "A", Alts: []string{"G"}}, false},
		{"missing alt", Variant{Chrom: "1", Pos: 10, Ref: "A"}, true},
		{"empty alt", Variant{Chrom: "1", Pos: 10, Ref: "A", Alts: []string{""}}, true},
		{"missing ref", Variant{Chrom: "1", Pos: 10, Alts: []string{"G"}}, true},
		{"missing chrom", Variant{Pos: 10, Ref: "A", Alts: []string{"G"}}, true},
		{"missing pos", Variant{Chrom: "1", Ref: "A", Alts: []string{"G"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.IsIncomplete())
		})
	}
}

func TestVariant_Alleles(t *testing.T) {
	v := &Variant{Ref: "A", Alts: []string{"G", "T"}}

	assert.Equal(t, []string{"A", "G"}, v.Alleles(Genotype{Indices: []int{0, 1}}))
	assert.Equal(t, []string{"T", "T"}, v.Alleles(Genotype{Indices: []int{2, 2}}))
	assert.Equal(t, []string{".", "."}, v.Alleles(Genotype{Indices: []int{MissingIndex, MissingIndex}}))
	assert.Equal(t, []string{"A", "."}, v.Alleles(Genotype{Indices: []int{0, 3}}))
}

func TestGenotype_IsMissing(t *testing.T) {
	assert.True(t, Genotype{Indices: []int{MissingIndex, MissingIndex}}.IsMissing())
	assert.True(t, Genotype{}.IsMissing())
	assert.False(t, Genotype{Indices: []int{MissingIndex, 0}}.IsMissing())
	assert.False(t, Genotype{Indices: []int{1, 1}}.IsMissing())
}
