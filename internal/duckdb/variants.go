package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inodb/genomatch/internal/genome"
)

// UpsertChromosome creates the chromosome row if it does not exist.
func (q *Queries) UpsertChromosome(ctx context.Context, c genome.Chromosome) error {
	if !c.Valid() {
		return &genome.InvalidChromosomeError{Name: c.String()}
	}
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO chromosomes (number) VALUES (?) ON CONFLICT DO NOTHING`, int(c))
	if err != nil {
		return fmt.Errorf("upsert chromosome %s: %w", c, err)
	}
	return nil
}

// ResolveChromosome resolves a contig name and upserts the chromosome.
func (q *Queries) ResolveChromosome(ctx context.Context, name string) (genome.Chromosome, error) {
	c, err := genome.Resolve(name)
	if err != nil {
		return 0, err
	}
	return c, q.UpsertChromosome(ctx, c)
}

// UpsertAllele creates the allele row if it does not exist.
func (q *Queries) UpsertAllele(ctx context.Context, sequence string) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO alleles (sequence) VALUES (?) ON CONFLICT DO NOTHING`, sequence)
	if err != nil {
		return fmt.Errorf("upsert allele %q: %w", sequence, err)
	}
	return nil
}

// ResolveAllele returns an UnknownAlleleError if sequence was never stored.
func (q *Queries) ResolveAllele(ctx context.Context, sequence string) error {
	var found string
	err := q.q.QueryRowContext(ctx,
		`SELECT sequence FROM alleles WHERE sequence = ?`, sequence).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return &UnknownAlleleError{Allele: sequence}
	}
	if err != nil {
		return fmt.Errorf("query allele %q: %w", sequence, err)
	}
	return nil
}

// UpsertGenotypeRecord creates the genotype record row if it does not exist.
func (q *Queries) UpsertGenotypeRecord(ctx context.Context, record string) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO genotype_records (record) VALUES (?) ON CONFLICT DO NOTHING`, record)
	if err != nil {
		return fmt.Errorf("upsert genotype record %q: %w", record, err)
	}
	return nil
}

// FindSNP looks a locus up by its exact key. Returns ErrNotFound if absent.
func (q *Queries) FindSNP(ctx context.Context, key SNPKey) (*SNP, error) {
	snp := &SNP{SNPKey: key}
	err := q.q.QueryRowContext(ctx,
		`SELECT id, name FROM snps WHERE chrom = ? AND pos = ? AND ref = ? AND alt = ?`,
		int(key.Chrom), key.Pos, key.Ref, key.Alt).Scan(&snp.ID, &snp.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query snp %s: %w", key, err)
	}
	return snp, nil
}

// UpsertSNP returns the locus for key, creating it if needed. A new locus is
// named name; an existing unnamed locus takes name. An existing name is never
// replaced, so callers compare the returned Name to detect conflicts.
func (q *Queries) UpsertSNP(ctx context.Context, key SNPKey, name string) (snp *SNP, created bool, err error) {
	snp, err = q.FindSNP(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		snp = &SNP{Name: name, SNPKey: key}
		err = q.q.QueryRowContext(ctx,
			`INSERT INTO snps (name, chrom, pos, ref, alt) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			name, int(key.Chrom), key.Pos, key.Ref, key.Alt).Scan(&snp.ID)
		if err != nil {
			return nil, false, fmt.Errorf("insert snp %s: %w", key, err)
		}
		return snp, true, nil
	case err != nil:
		return nil, false, err
	}

	if snp.Name == "" && name != "" {
		if _, err := q.q.ExecContext(ctx,
			`UPDATE snps SET name = ? WHERE id = ?`, name, snp.ID); err != nil {
			return nil, false, fmt.Errorf("name snp %s: %w", key, err)
		}
		snp.Name = name
	}
	return snp, false, nil
}

// SNPsAt returns every locus at a chromosome position, whatever its alleles.
func (q *Queries) SNPsAt(ctx context.Context, chrom genome.Chromosome, pos int64) ([]SNP, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT id, name, chrom, pos, ref, alt FROM snps WHERE chrom = ? AND pos = ? ORDER BY id`,
		int(chrom), pos)
	if err != nil {
		return nil, fmt.Errorf("query snps at %s:%d: %w", chrom, pos, err)
	}
	defer rows.Close()

	var snps []SNP
	for rows.Next() {
		var s SNP
		var c int
		if err := rows.Scan(&s.ID, &s.Name, &c, &s.Pos, &s.Ref, &s.Alt); err != nil {
			return nil, fmt.Errorf("scan snp: %w", err)
		}
		s.Chrom = genome.Chromosome(c)
		snps = append(snps, s)
	}
	return snps, rows.Err()
}

// CreateVariant records one sample's observation at a locus together with
// the distinct alleles of the call.
func (q *Queries) CreateVariant(ctx context.Context, sample string, snpID int64, genotype string, alleles []string) (int64, error) {
	var id int64
	err := q.q.QueryRowContext(ctx,
		`INSERT INTO variants (sample, snp_id, genotype) VALUES (?, ?, ?) RETURNING id`,
		sample, snpID, genotype).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert variant for %s: %w", sample, err)
	}

	for _, a := range alleles {
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO variant_alleles (variant_id, allele) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			id, a); err != nil {
			return 0, fmt.Errorf("link allele %q to variant %d: %w", a, id, err)
		}
	}
	return id, nil
}

// ObservationsAt returns every Variant recorded at a locus, in creation order.
func (q *Queries) ObservationsAt(ctx context.Context, snpID int64) ([]Observation, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT v.id, v.sample, v.genotype, a.allele
		FROM variants v LEFT JOIN variant_alleles a ON a.variant_id = v.id
		WHERE v.snp_id = ?
		ORDER BY v.id, a.allele`, snpID)
	if err != nil {
		return nil, fmt.Errorf("query variants at snp %d: %w", snpID, err)
	}
	defer rows.Close()

	var obs []Observation
	for rows.Next() {
		var (
			id       int64
			sample   string
			genotype string
			allele   sql.NullString
		)
		if err := rows.Scan(&id, &sample, &genotype, &allele); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if len(obs) == 0 || obs[len(obs)-1].VariantID != id {
			obs = append(obs, Observation{VariantID: id, Sample: sample, Genotype: genotype})
		}
		if allele.Valid {
			last := &obs[len(obs)-1]
			last.Alleles = append(last.Alleles, allele.String)
		}
	}
	return obs, rows.Err()
}

// SampleVariant is one stored Variant of a sample with its locus.
type SampleVariant struct {
	SNP      SNP
	Genotype string
}

// SampleVariants returns a sample's variants ordered by chromosome and position.
func (q *Queries) SampleVariants(ctx context.Context, sample string) ([]SampleVariant, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT s.id, s.name, s.chrom, s.pos, s.ref, s.alt, v.genotype
		FROM variants v JOIN snps s ON s.id = v.snp_id
		WHERE v.sample = ?
		ORDER BY s.chrom, s.pos, v.id`, sample)
	if err != nil {
		return nil, fmt.Errorf("query variants of %s: %w", sample, err)
	}
	defer rows.Close()

	var out []SampleVariant
	for rows.Next() {
		var sv SampleVariant
		var c int
		if err := rows.Scan(&sv.SNP.ID, &sv.SNP.Name, &c, &sv.SNP.Pos, &sv.SNP.Ref, &sv.SNP.Alt, &sv.Genotype); err != nil {
			return nil, fmt.Errorf("scan sample variant: %w", err)
		}
		sv.SNP.Chrom = genome.Chromosome(c)
		out = append(out, sv)
	}
	return out, rows.Err()
}

// Counts holds the number of rows of each entity.
type Counts struct {
	Chromosomes     int64
	Alleles         int64
	SNPs            int64
	GenotypeRecords int64
	Samples         int64
	Variants        int64
}

// Counts returns the number of rows of each entity.
func (q *Queries) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := q.q.QueryRowContext(ctx, `SELECT
		(SELECT count(*) FROM chromosomes),
		(SELECT count(*) FROM alleles),
		(SELECT count(*) FROM snps),
		(SELECT count(*) FROM genotype_records),
		(SELECT count(*) FROM samples),
		(SELECT count(*) FROM variants)`).Scan(
		&c.Chromosomes, &c.Alleles, &c.SNPs, &c.GenotypeRecords, &c.Samples, &c.Variants)
	if err != nil {
		return Counts{}, fmt.Errorf("count entities: %w", err)
	}
	return c, nil
}
