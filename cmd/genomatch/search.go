package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/genomatch/internal/output"
	"github.com/inodb/genomatch/internal/search"
	"github.com/inodb/genomatch/internal/vcf"
)

func (a *app) newSearchCmd() *cobra.Command {
	var loci []string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find stored samples sharing genotypes at given loci",
		Long: `Score every stored variant at each queried position against the queried
genotype. Each query is chrom:pos:allele1/allele2. Per-query matches are
listed best first, followed by each sample's average score over all queries.`,
		Example: `  genomatch search --locus chr7:5000:A/C --locus X:300:G/G`,
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(loci) == 0 {
				return usageError{fmt.Errorf("at least one --locus is required")}
			}
			queries := make([]search.LocusQuery, 0, len(loci))
			for _, l := range loci {
				q, err := search.ParseLocusQuery(l)
				if err != nil {
					return err
				}
				queries = append(queries, q)
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			t := search.NewTargeted(s)
			t.SetLogger(a.logger)
			t.SetMetrics(a.metrics)
			res, err := t.Search(cmd.Context(), queries)
			if err != nil {
				return err
			}
			return writeTargeted(cmd, res)
		},
	}

	cmd.Flags().StringArrayVarP(&loci, "locus", "l", nil, "Locus query chrom:pos:allele1/allele2 (repeatable)")
	return cmd
}

func writeTargeted(cmd *cobra.Command, res *search.TargetedResult) error {
	w := cmd.OutOrStdout()
	for _, qr := range res.Queries {
		tw := output.NewTabWriter(w, "sample", "genotype", "similarity")
		tw.WriteComment(qr.Query.String())
		tw.WriteHeader()
		for _, m := range qr.Matches {
			tw.Write(m.Sample, m.Genotype, output.FormatScore(m.Score))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "## average similarity")
	return output.WriteRanking(w, "sample", "similarity", res.Samples)
}

func (a *app) newScanCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Rank stored samples by genome-wide similarity to an uploaded VCF",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := vcf.FileSource(args[0])
			if err := vcf.Validate(src); err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sc := search.NewScanner(s)
			sc.SetWorkers(viper.GetInt("scan.workers"))
			sc.SetLogger(a.logger)
			sc.SetMetrics(a.metrics)
			res, err := sc.Scan(cmd.Context(), src)
			if err != nil {
				return err
			}

			uploaded := make([]string, 0, len(res.Samples))
			for name := range res.Samples {
				uploaded = append(uploaded, name)
			}
			sort.Strings(uploaded)

			w := cmd.OutOrStdout()
			for _, name := range uploaded {
				tw := output.NewTabWriter(w, "sample", "similarity")
				tw.WriteComment(fmt.Sprintf("%s (%d records, %d not stored)", name, res.Records, res.Unknown))
				tw.WriteHeader()
				for i, r := range res.Ranking(name) {
					if top > 0 && i >= top {
						break
					}
					tw.Write(r.Label, output.FormatScore(r.Score))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 10, "Show the N closest samples per uploaded sample (0 for all)")
	return cmd
}
