// Package output provides result formatters: tab-delimited tables for search
// and prediction results, and genotype VCF serialization.
package output

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
)

// TabWriter writes rows in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer with the given columns.
func NewTabWriter(w io.Writer, columns ...string) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single row. Empty values are written as "-".
func (tw *TabWriter) Write(values ...string) error {
	row := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			v = "-"
		}
		row[i] = v
	}
	_, err := tw.w.WriteString(strings.Join(row, "\t") + "\n")
	return err
}

// WriteComment writes a "## "-prefixed line.
func (tw *TabWriter) WriteComment(text string) error {
	_, err := tw.w.WriteString("## " + text + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// FormatScore renders a similarity or probability in its shortest form.
func FormatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Scored is a label with a score, such as a sample and its similarity.
type Scored struct {
	Label string
	Score float64
}

// Rank sorts a label to score mapping by descending score, then label.
func Rank(m map[string]float64) []Scored {
	out := make([]Scored, 0, len(m))
	for k, v := range m {
		out = append(out, Scored{Label: k, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// WriteRanking writes a two-column ranking table.
func WriteRanking(w io.Writer, labelColumn, scoreColumn string, m map[string]float64) error {
	tw := NewTabWriter(w, labelColumn, scoreColumn)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, s := range Rank(m) {
		if err := tw.Write(s.Label, FormatScore(s.Score)); err != nil {
			return err
		}
	}
	return tw.Flush()
}
