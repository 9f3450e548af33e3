package output

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVCFWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf)
	require.NoError(t, w.WriteHeader([]string{"S1", "S2"}))
	require.NoError(t, w.Write(Record{Chrom: "1", Pos: 100, ID: "rs1", Ref: "C", Alts: []string{"T"}, Genotypes: []string{"0/1", "1/1"}}))
	require.NoError(t, w.Write(Record{Chrom: "X", Pos: 5, Ref: "A", Alts: []string{"G"}, Genotypes: []string{"0/0"}}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "##fileformat=VCFv4.3", lines[0])
	assert.Equal(t, "##source=genomatch", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "##FORMAT=<ID=GT"))
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2", lines[3])
	assert.Equal(t, "1\t100\trs1\tC\tT\t.\t.\t.\tGT\t0/1\t1/1", lines[4])
	assert.Equal(t, "X\t5\t.\tA\tG\t.\t.\t.\tGT\t0/0\t./.", lines[5])
}

func TestDocument_OpenAndSave(t *testing.T) {
	doc := NewDocument("S1")
	doc.Add(Record{Chrom: "7", Pos: 10, Ref: "A", Alts: []string{"C"}, Genotypes: []string{"1/1"}})

	rc, err := doc.Open()
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Contains(t, string(b), "\tFORMAT\tS1\n7\t10\t.\tA\tC\t.\t.\t.\tGT\t1/1\n")

	path := filepath.Join(t.TempDir(), "doc.vcf")
	require.NoError(t, doc.Save(path))
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(saved))
}
