package vcf

import (
	"errors"
	"fmt"

	"github.com/brentp/vcfgo"
)

// ErrInvalidFormat is returned when a file cannot be read as VCF at all.
var ErrInvalidFormat = errors.New("invalid vcf format")

// ErrSampleCount is returned when a file must hold exactly one sample but
// declares none or several.
var ErrSampleCount = errors.New("vcf must contain exactly 1 sample")

// Validate fails fast if src cannot be opened and its header parsed.
// It does not inspect every record: incomplete records are skipped later
// during ingestion.
func Validate(src Source) error {
	_, err := readHeader(src)
	return err
}

// SampleNames returns the sample names declared in the header of src.
func SampleNames(src Source) ([]string, error) {
	h, err := readHeader(src)
	if err != nil {
		return nil, err
	}
	return h.SampleNames, nil
}

// CheckSingleSample fails with ErrSampleCount unless src declares exactly
// one sample.
func CheckSingleSample(src Source) error {
	names, err := SampleNames(src)
	if err != nil {
		return err
	}
	if len(names) != 1 {
		return fmt.Errorf("%w. Number of samples: %d", ErrSampleCount, len(names))
	}
	return nil
}

func readHeader(src Source) (*vcfgo.Header, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer rc.Close()

	rdr, err := vcfgo.NewReader(rc, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return rdr.Header, nil
}
