package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/genomatch/internal/duckdb"
	"github.com/inodb/genomatch/internal/genome"
	"github.com/inodb/genomatch/internal/metrics"
	"github.com/inodb/genomatch/internal/vcf"
)

const header = "##fileformat=VCFv4.2\n" +
	"##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n"

// twoSamples has two samples, three records and one record without ALT.
const twoSamples = header +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n" +
	"1\t100\trs1\tC\tT\t50\tPASS\t.\tGT:DP\t0/1:12\t1/1:8\n" +
	"chr2\t200\t.\tA\tG,T\t.\tPASS\t.\tGT\t1/0\t./.\n" +
	"X\t300\trs3\tG\t.\t.\tPASS\t.\tGT\t0/0\t0|1\n"

func vcfSource(lines ...string) vcf.Source {
	return vcf.BytesSource(strings.Join(lines, ""))
}

func setup(t *testing.T) (*duckdb.Store, *Engine) {
	t.Helper()
	s, err := duckdb.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, NewEngine(s)
}

func writeVCF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.vcf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest_EndToEnd(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()
	m := metrics.New()
	e.SetMetrics(m)

	u, err := e.Upload(ctx, writeVCF(t, twoSamples))
	require.NoError(t, err)
	assert.False(t, u.Committed)

	res, err := e.Ingest(ctx, u.ID, vcf.FileSource(u.Path))
	require.NoError(t, err)
	assert.Equal(t, Done, res.State)
	assert.Equal(t, []string{"S1", "S2"}, res.NewSamples)
	assert.Empty(t, res.KnownSamples)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 4, res.Variants)

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, duckdb.Counts{
		Chromosomes:     2, // X is only seen on the skipped record
		Alleles:         5, // C T A G and the missing allele
		SNPs:            2,
		GenotypeRecords: 3, // 0/1 1/1 ./.
		Samples:         2,
		Variants:        4,
	}, c)

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Committed)

	for _, name := range []string{"S1", "S2"} {
		smp, err := s.GetSample(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, u.ID, smp.UploadID)
	}

	// Only the first ALT is modeled; 1/0 is stored as 0/1.
	snp, err := s.FindSNP(ctx, duckdb.SNPKey{Chrom: 2, Pos: 200, Ref: "A", Alt: "G"})
	require.NoError(t, err)
	obs, err := s.ObservationsAt(ctx, snp.ID)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "S1", obs[0].Sample)
	assert.Equal(t, "0/1", obs[0].Genotype)
	assert.Equal(t, []string{"A", "G"}, obs[0].Alleles)
	assert.Equal(t, "./.", obs[1].Genotype)
	assert.Equal(t, []string{vcf.MissingAllele}, obs[1].Alleles)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Files.WithLabelValues(metrics.StateDone)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedRecords))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Variants))
}

func TestIngest_Idempotent(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()
	src := vcfSource(twoSamples)

	_, err := e.Ingest(ctx, "", src)
	require.NoError(t, err)
	first, err := s.Counts(ctx)
	require.NoError(t, err)

	res, err := e.Ingest(ctx, "", src)
	require.NoError(t, err)
	assert.Equal(t, Aborted, res.State)
	assert.Equal(t, "no new samples", res.Reason)
	assert.Equal(t, []string{"S1", "S2"}, res.KnownSamples)

	second, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIngest_SameLociUnderNewSamples(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()

	_, err := e.Ingest(ctx, "", vcfSource(twoSamples))
	require.NoError(t, err)
	first, err := s.Counts(ctx)
	require.NoError(t, err)

	renamed := strings.Replace(twoSamples, "FORMAT\tS1\tS2\n", "FORMAT\tS3\tS4\n", 1)
	res, err := e.Ingest(ctx, "", vcfSource(renamed))
	require.NoError(t, err)
	assert.Equal(t, Done, res.State)
	assert.Equal(t, []string{"S3", "S4"}, res.NewSamples)
	assert.Equal(t, 4, res.Variants)
	assert.Zero(t, res.Conflicts)

	second, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Chromosomes, second.Chromosomes)
	assert.Equal(t, first.Alleles, second.Alleles)
	assert.Equal(t, first.SNPs, second.SNPs)
	assert.Equal(t, first.GenotypeRecords, second.GenotypeRecords)
	assert.Equal(t, first.Samples+2, second.Samples)
	assert.Equal(t, first.Variants+4, second.Variants)
}

func TestIngest_OnlyNewSamples(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()

	_, err := e.Ingest(ctx, "", vcfSource(header,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n",
		"1\t100\trs1\tC\tT\t.\t.\t.\tGT\t0/0\n"))
	require.NoError(t, err)

	res, err := e.Ingest(ctx, "", vcfSource(header,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS3\n",
		"1\t100\trs1\tC\tT\t.\t.\t.\tGT\t1/1\t0/1\n"))
	require.NoError(t, err)
	assert.Equal(t, Done, res.State)
	assert.Equal(t, []string{"S3"}, res.NewSamples)
	assert.Equal(t, []string{"S1"}, res.KnownSamples)
	assert.Equal(t, 1, res.Variants)

	sv, err := s.SampleVariants(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, sv, 1)
	assert.Equal(t, "0/0", sv[0].Genotype, "known sample keeps its first observation")
}

func TestIngest_NoSamples(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()

	u, err := e.Upload(ctx, writeVCF(t, "##fileformat=VCFv4.2\n"+
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"+
		"7\t5000\trs7\tA\tC\t.\tPASS\t.\n"))
	require.NoError(t, err)

	res, err := e.Ingest(ctx, u.ID, vcf.FileSource(u.Path))
	require.NoError(t, err)
	assert.Equal(t, Aborted, res.State)
	assert.Equal(t, "no samples", res.Reason)

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, duckdb.Counts{}, c)

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Committed, "the file is kept")
}

func TestIngest_NoRecords(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()

	res, err := e.Ingest(ctx, "", vcfSource(header,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n"))
	require.NoError(t, err)
	assert.Equal(t, Aborted, res.State)

	names, err := s.SampleNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestIngest_InvalidChromosomeRollsBack(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()

	u, err := e.Upload(ctx, writeVCF(t, header+
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n"+
		"1\t100\trs1\tC\tT\t.\t.\t.\tGT\t0/1\n"+
		"chrZ\t200\trs2\tA\tG\t.\t.\t.\tGT\t1/1\n"))
	require.NoError(t, err)

	_, err = e.Ingest(ctx, u.ID, vcf.FileSource(u.Path))
	require.Error(t, err)
	assert.True(t, errors.Is(err, genome.ErrInvalidChromosome))
	var invalid *genome.InvalidChromosomeError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "chrZ", invalid.Name)

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, duckdb.Counts{}, c)

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Committed)
}

func TestIngest_NameConflict(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()

	_, err := e.Ingest(ctx, "", vcfSource(header,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n",
		"1\t100\t.\tC\tT\t.\t.\t.\tGT\t0/1\n"))
	require.NoError(t, err)

	res, err := e.Ingest(ctx, "", vcfSource(header,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS2\n",
		"1\t100\trs1\tC\tT\t.\t.\t.\tGT\t0/1\n"))
	require.NoError(t, err)
	assert.Zero(t, res.Conflicts, "an unnamed locus takes the name")

	res, err = e.Ingest(ctx, "", vcfSource(header,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS3\n",
		"chr1\t100\trs99\tC\tT\t.\t.\t.\tGT\t1/1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)

	snp, err := s.FindSNP(ctx, duckdb.SNPKey{Chrom: 1, Pos: 100, Ref: "C", Alt: "T"})
	require.NoError(t, err)
	assert.Equal(t, "rs1", snp.Name)
}

func TestIngest_UnknownUpload(t *testing.T) {
	s, e := setup(t)
	ctx := context.Background()

	_, err := e.Ingest(ctx, "missing", vcfSource(twoSamples))
	assert.ErrorIs(t, err, duckdb.ErrNotFound)

	names, err := s.SampleNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStatistics(t *testing.T) {
	st, err := Statistics(vcfSource(twoSamples))
	require.NoError(t, err)

	assert.Equal(t, []string{"S1", "S2"}, st.Samples)
	assert.Equal(t, 3, st.Records)
	// S1: 0/1 1/0 0/0, S2: 1/1 ./. 0|1
	assert.Equal(t, AlleleCounts{Refs: 4, Alts: 2}, *st.PerSample["S1"])
	assert.Equal(t, AlleleCounts{Refs: 1, Alts: 3, Missing: 2}, *st.PerSample["S2"])
	assert.Equal(t, AlleleCounts{Refs: 5, Alts: 5, Missing: 2}, st.AlleleCounts)

	assert.Equal(t, duckdb.UploadStats{Samples: 2, Records: 3, Refs: 5, Alts: 5, Missing: 2}, st.UploadStats())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_first_record", AwaitingFirstRecord.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "aborted", Aborted.String())
	assert.Equal(t, "State(9)", State(9).String())
}
