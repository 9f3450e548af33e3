package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/genomatch/internal/genome"
	"github.com/inodb/genomatch/internal/vcf"
)

// MissingGenotype is the genotype record of a call with no known allele.
const MissingGenotype = "./."

// Gender values stored on a Sample.
const (
	GenderFemale    = "F"
	GenderMale      = "M"
	GenderOther     = "O"
	GenderUndefined = "U"
)

// ErrUnknownAllele is matched by every UnknownAlleleError.
var ErrUnknownAllele = errors.New("unknown allele")

// UnknownAlleleError reports an allele sequence that was never stored.
type UnknownAlleleError struct {
	Allele string
}

func (e *UnknownAlleleError) Error() string {
	return fmt.Sprintf("allele %q does not exist in the database", e.Allele)
}

// Is makes errors.Is(err, ErrUnknownAllele) true.
func (e *UnknownAlleleError) Is(target error) bool {
	return target == ErrUnknownAllele
}

// SNPKey is the natural key of a SNP locus.
type SNPKey struct {
	Chrom genome.Chromosome
	Pos   int64
	Ref   string
	Alt   string
}

func (k SNPKey) String() string {
	return fmt.Sprintf("chr%s:%d %s>%s", k.Chrom, k.Pos, k.Ref, k.Alt)
}

// SNP is a stored locus.
type SNP struct {
	ID   int64
	Name string
	SNPKey
}

// Sample is a stored individual.
type Sample struct {
	Cypher               string
	Gender               string
	Nationality          string
	PredictedNationality string
	MTHaplogroup         string
	YHaplogroup          string
	UploadID             string
}

// Observation is one stored Variant at a locus.
type Observation struct {
	VariantID int64
	Sample    string
	Genotype  string
	Alleles   []string // distinct allele sequences, sorted
}

// GenotypeString renders the observed alleles for display: a single allele
// C is shown as "C, C", several are comma-joined, none is "unknown".
func (o Observation) GenotypeString() string {
	switch len(o.Alleles) {
	case 0:
		return "unknown"
	case 1:
		return o.Alleles[0] + ", " + o.Alleles[0]
	default:
		return strings.Join(o.Alleles, ", ")
	}
}

// EncodeGenotype builds the genotype record for a call's allele indices.
// A fully missing call is "./."; the pair (1, 0) is recorded as "0/1";
// every other call joins its indices with "/".
func EncodeGenotype(indices []int) string {
	if len(indices) == 0 || (vcf.Genotype{Indices: indices}).IsMissing() {
		return MissingGenotype
	}
	if len(indices) == 2 && indices[0] == 1 && indices[1] == 0 {
		return "0/1"
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		if idx == vcf.MissingIndex {
			parts[i] = "."
		} else {
			parts[i] = strconv.Itoa(idx)
		}
	}
	return strings.Join(parts, "/")
}

func nullString(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}

func toNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
