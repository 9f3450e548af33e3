// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parser reads variants from a VCF file.
type Parser struct {
	reader      *bufio.Reader
	closer      io.Closer
	lineNumber  int
	sampleNames []string // sample names from #CHROM header line
}

// NewParserFromReader creates a parser from an io.Reader. If r is an
// io.Closer it is closed by Close.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}
	if c, ok := r.(io.Closer); ok {
		p.closer = c
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// OpenSource opens a Source and parses its header.
func OpenSource(src Source) (*Parser, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open vcf source: %w", err)
	}
	return NewParserFromReader(rc)
}

// parseHeader skips meta lines and reads sample names from #CHROM.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			// Extract sample names from columns after FORMAT (index 9+)
			fields := strings.Split(line, "\t")
			if len(fields) > 9 {
				p.sampleNames = fields[9:]
			}
			return nil
		}

		// Non-header line encountered without #CHROM
		return &ParseError{
			Line:    p.lineNumber,
			Message: "expected #CHROM header line",
		}
	}

	return &ParseError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
	}
}

// Next reads the next variant from the VCF file.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		return p.parseLine(line)
	}
}

// parseLine parses a single VCF data line into a Variant.
// Missing CHROM, POS, REF or ALT values are left empty so that callers can
// decide how to treat incomplete records.
func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	var pos int64
	if fields[1] != "." && fields[1] != "" {
		var err error
		pos, err = strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("invalid position: %s", fields[1]),
			}
		}
	}

	qual := 0.0
	if fields[5] != "." {
		qual, _ = strconv.ParseFloat(fields[5], 64)
	}

	v := &Variant{
		Chrom:  missingToEmpty(fields[0]),
		Pos:    pos,
		ID:     missingToEmpty(fields[2]),
		Ref:    missingToEmpty(fields[3]),
		Qual:   qual,
		Filter: fields[6],
		Info:   fields[7],
	}
	if alt := missingToEmpty(fields[4]); alt != "" {
		v.Alts = strings.Split(alt, ",")
	}

	if len(p.sampleNames) == 0 {
		return v, nil
	}

	gtIndex := -1
	if len(fields) > 8 {
		for i, key := range strings.Split(fields[8], ":") {
			if key == "GT" {
				gtIndex = i
				break
			}
		}
	}

	v.Genotypes = make([]Genotype, len(p.sampleNames))
	for i := range p.sampleNames {
		gt := ""
		if col := 9 + i; gtIndex >= 0 && col < len(fields) {
			sub := strings.Split(fields[col], ":")
			if gtIndex < len(sub) {
				gt = sub[gtIndex]
			}
		}
		g, err := parseGT(gt)
		if err != nil {
			return nil, &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("invalid genotype %q for sample %s", gt, p.sampleNames[i]),
			}
		}
		v.Genotypes[i] = g
	}

	return v, nil
}

// parseGT parses a GT value such as "0/1", "1|0", "./." or ".".
// An absent value is a diploid missing call.
func parseGT(s string) (Genotype, error) {
	g := Genotype{Phased: strings.Contains(s, "|")}
	if s == "" {
		g.Indices = []int{MissingIndex, MissingIndex}
		return g, nil
	}

	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '|' })
	if len(parts) == 0 {
		return g, fmt.Errorf("empty genotype")
	}

	g.Indices = make([]int, len(parts))
	for i, part := range parts {
		if part == "." {
			g.Indices[i] = MissingIndex
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return g, fmt.Errorf("invalid allele index %q", part)
		}
		g.Indices[i] = n
	}
	return g, nil
}

func missingToEmpty(s string) string {
	if s == "." {
		return ""
	}
	return s
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (p *Parser) SampleNames() []string {
	return p.sampleNames
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

// Is makes errors.Is(err, ErrInvalidFormat) true.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidFormat
}
