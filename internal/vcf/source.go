package vcf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/brentp/xopen"
)

// Source produces a readable VCF byte stream. File paths, in-memory uploads,
// re-serialized samples and single-sample views of another source all
// implement it. Each Open call starts a fresh stream.
type Source interface {
	Open() (io.ReadCloser, error)
}

// FileSource reads a VCF from a path. Gzipped files are decompressed.
type FileSource string

// Open implements Source.
func (f FileSource) Open() (io.ReadCloser, error) {
	rdr, err := xopen.Ropen(string(f))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", string(f), err)
	}
	return rdr, nil
}

// BytesSource is a VCF held in memory, such as an uploaded file body.
type BytesSource []byte

// Open implements Source.
func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// SubsetSource restricts another source to the FORMAT column and a single
// sample column.
type SubsetSource struct {
	Source Source
	Sample string
}

// Open implements Source. The subset is streamed through a pipe.
func (s SubsetSource) Open() (io.ReadCloser, error) {
	rc, err := s.Source.Open()
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := subsetSample(pw, rc, s.Sample)
		rc.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// subsetSample copies a VCF from r to w keeping only the named sample column.
func subsetSample(w io.Writer, r io.Reader, sample string) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	col := -1
	lineNumber := 0

	for {
		line, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				break
			}
			return err
		}
		lineNumber++
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "##"):
		case strings.HasPrefix(line, "#CHROM"):
			fields := strings.Split(line, "\t")
			for i := 9; i < len(fields); i++ {
				if fields[i] == sample {
					col = i
					break
				}
			}
			if col < 0 {
				return fmt.Errorf("sample %q not found in vcf header", sample)
			}
			line = strings.Join(append(fields[:9:9], fields[col]), "\t")
		case line == "":
			continue
		default:
			if col < 0 {
				return &ParseError{Line: lineNumber, Message: "expected #CHROM header line"}
			}
			fields := strings.Split(line, "\t")
			if len(fields) < 9 {
				break
			}
			value := "."
			if col < len(fields) {
				value = fields[col]
			}
			if len(fields) > 9 {
				fields = fields[:9]
			}
			line = strings.Join(append(fields, value), "\t")
		}

		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}
