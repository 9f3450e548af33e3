package output

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// genotypeHeader is written at the top of every re-serialized VCF.
var genotypeHeader = []string{
	"##fileformat=VCFv4.3",
	"##source=genomatch",
	`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
}

var fixedColumns = []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT"}

// Record is one genotype-only VCF line.
type Record struct {
	Chrom     string   // rendered chromosome name
	Pos       int64    // 1-based position
	ID        string   // variant name; "." when empty
	Ref       string   // reference allele
	Alts      []string // alternate alleles
	Genotypes []string // GT value per sample, e.g. "0/1"
}

// VCFWriter writes genotype-only VCF files with a GT FORMAT column.
type VCFWriter struct {
	w       *bufio.Writer
	samples int
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer) *VCFWriter {
	return &VCFWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the meta lines and the #CHROM line for samples.
func (vw *VCFWriter) WriteHeader(samples []string) error {
	vw.samples = len(samples)
	for _, line := range genotypeHeader {
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	cols := append(append([]string{}, fixedColumns...), samples...)
	_, err := vw.w.WriteString(strings.Join(cols, "\t") + "\n")
	return err
}

// Write writes one record. Missing genotypes are written as "./.".
func (vw *VCFWriter) Write(r Record) error {
	var lb strings.Builder
	lb.Grow(64 + 4*vw.samples)

	lb.WriteString(r.Chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(r.Pos, 10))
	lb.WriteByte('\t')
	lb.WriteString(orDot(r.ID))
	lb.WriteByte('\t')
	lb.WriteString(r.Ref)
	lb.WriteByte('\t')
	lb.WriteString(orDot(strings.Join(r.Alts, ",")))
	lb.WriteString("\t.\t.\t.\tGT")
	for i := 0; i < vw.samples; i++ {
		lb.WriteByte('\t')
		if i < len(r.Genotypes) && r.Genotypes[i] != "" {
			lb.WriteString(r.Genotypes[i])
		} else {
			lb.WriteString("./.")
		}
	}
	lb.WriteByte('\n')

	_, err := vw.w.WriteString(lb.String())
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}

// Document is an in-memory genotype VCF. It satisfies vcf.Source.
type Document struct {
	Samples []string
	Records []Record
}

// NewDocument creates an empty document for the given samples.
func NewDocument(samples ...string) *Document {
	return &Document{Samples: samples}
}

// Add appends a record.
func (d *Document) Add(r Record) {
	d.Records = append(d.Records, r)
}

// Write serializes the document to w.
func (d *Document) Write(w io.Writer) error {
	vw := NewVCFWriter(w)
	if err := vw.WriteHeader(d.Samples); err != nil {
		return err
	}
	for _, r := range d.Records {
		if err := vw.Write(r); err != nil {
			return err
		}
	}
	return vw.Flush()
}

// Open serializes the document and returns a reader over it.
func (d *Document) Open() (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

// Save writes the document to path.
func (d *Document) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
