// Package genome maps chromosome names onto canonical chromosome numbers.
package genome

import (
	"errors"
	"fmt"
	"strconv"
)

// Chromosome is a canonical chromosome number: 1-22 for autosomes, then
// X, Y, the XY pseudo-autosomal region and the mitochondrial genome.
type Chromosome int

// Canonical numbers for the non-autosomal chromosomes.
const (
	ChromX  Chromosome = 23
	ChromY  Chromosome = 24
	ChromXY Chromosome = 25
	ChromMT Chromosome = 26

	MinChromosome Chromosome = 1
	MaxChromosome Chromosome = ChromMT
)

// ErrInvalidChromosome is matched by every InvalidChromosomeError.
var ErrInvalidChromosome = errors.New("invalid chromosome")

// InvalidChromosomeError reports a chromosome name that cannot be resolved.
type InvalidChromosomeError struct {
	Name string
}

func (e *InvalidChromosomeError) Error() string {
	return fmt.Sprintf("%q is not a valid chromosome name", e.Name)
}

// Is makes errors.Is(err, ErrInvalidChromosome) true.
func (e *InvalidChromosomeError) Is(target error) bool {
	return target == ErrInvalidChromosome
}

// NameTable is an immutable bidirectional mapping between contig names and
// canonical chromosome numbers.
type NameTable struct {
	toNumber map[string]Chromosome
	toName   map[Chromosome]string
}

// DefaultNames accepts chr1-chr22, 1-22, X/chrX, Y/chrY, XY/chrXY and
// M/chrM/MT, and renders 1-22, X, Y, XY and M.
var DefaultNames = newDefaultNames()

func newDefaultNames() NameTable {
	t := NameTable{
		toNumber: make(map[string]Chromosome, 64),
		toName:   make(map[Chromosome]string, int(MaxChromosome)),
	}
	for i := 1; i <= 22; i++ {
		c := Chromosome(i)
		t.toNumber["chr"+strconv.Itoa(i)] = c
		t.toNumber[strconv.Itoa(i)] = c
		t.toName[c] = strconv.Itoa(i)
	}
	for name, c := range map[string]Chromosome{
		"X": ChromX, "chrX": ChromX,
		"Y": ChromY, "chrY": ChromY,
		"XY": ChromXY, "chrXY": ChromXY,
		"M": ChromMT, "chrM": ChromMT, "MT": ChromMT,
	} {
		t.toNumber[name] = c
	}
	t.toName[ChromX] = "X"
	t.toName[ChromY] = "Y"
	t.toName[ChromXY] = "XY"
	t.toName[ChromMT] = "M"
	return t
}

// Resolve maps a contig name to its canonical chromosome. Names missing from
// the table are accepted only if they parse as an integer in 1-26.
func (t NameTable) Resolve(name string) (Chromosome, error) {
	if c, ok := t.toNumber[name]; ok {
		return c, nil
	}
	n, err := strconv.Atoi(name)
	if err != nil || !Chromosome(n).Valid() {
		return 0, &InvalidChromosomeError{Name: name}
	}
	return Chromosome(n), nil
}

// Name renders a canonical chromosome as its bare name.
func (t NameTable) Name(c Chromosome) string {
	if name, ok := t.toName[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// Resolve resolves name with DefaultNames.
func Resolve(name string) (Chromosome, error) {
	return DefaultNames.Resolve(name)
}

// Valid reports whether c is in the canonical range.
func (c Chromosome) Valid() bool {
	return c >= MinChromosome && c <= MaxChromosome
}

func (c Chromosome) String() string {
	return DefaultNames.Name(c)
}
