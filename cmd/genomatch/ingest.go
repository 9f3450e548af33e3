package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/genomatch/internal/duckdb"
	"github.com/inodb/genomatch/internal/ingest"
	"github.com/inodb/genomatch/internal/output"
	"github.com/inodb/genomatch/internal/vcf"
)

func (a *app) newEngine(s *duckdb.Store) *ingest.Engine {
	e := ingest.NewEngine(s)
	e.SetLogger(a.logger)
	e.SetMetrics(a.metrics)
	return e
}

func (a *app) newIngestCmd() *cobra.Command {
	var provisional bool

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Store the samples of a VCF file",
		Long: `Validate a VCF file, register it as an upload and merge its samples into
the store. With --provisional the file is only registered; merge it later
with 'genomatch commit <upload-id>' before the retention period expires.`,
		Example: `  genomatch ingest cohort.vcf.gz
  genomatch ingest --provisional upload.vcf`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := a.purgeStale(cmd, s); err != nil {
				return err
			}

			e := a.newEngine(s)
			u, err := e.Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if provisional {
				fmt.Fprintf(cmd.OutOrStdout(), "Registered upload %s (%d samples, %d records)\n",
					u.ID, u.Stats.Samples, u.Stats.Records)
				return nil
			}

			res, err := e.Ingest(cmd.Context(), u.ID, vcf.FileSource(u.Path))
			if err != nil {
				return err
			}
			return writeIngestResult(cmd, res)
		},
	}

	cmd.Flags().BoolVar(&provisional, "provisional", false, "Register the file without storing its samples")
	return cmd
}

func (a *app) newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <upload-id>",
		Short: "Store the samples of a provisional upload",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := a.purgeStale(cmd, s); err != nil {
				return err
			}

			u, err := s.GetUpload(cmd.Context(), args[0])
			if errors.Is(err, duckdb.ErrNotFound) {
				return fmt.Errorf("upload %s does not exist or has expired", args[0])
			}
			if err != nil {
				return err
			}
			if u.Committed {
				return fmt.Errorf("upload %s is already committed", u.ID)
			}
			if err := u.Verify(); err != nil {
				return err
			}

			res, err := a.newEngine(s).Ingest(cmd.Context(), u.ID, vcf.FileSource(u.Path))
			if err != nil {
				return err
			}
			return writeIngestResult(cmd, res)
		},
	}
}

func writeIngestResult(cmd *cobra.Command, res *ingest.Result) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Upload %s: %s\n", res.UploadID, res.State)
	if res.Reason != "" {
		fmt.Fprintf(w, "  reason: %s\n", res.Reason)
	}
	fmt.Fprintf(w, "  new samples: %d, known samples ignored: %d\n", len(res.NewSamples), len(res.KnownSamples))
	fmt.Fprintf(w, "  records: %d stored, %d skipped\n", res.Records, res.Skipped)
	fmt.Fprintf(w, "  variants: %d\n", res.Variants)
	if res.Conflicts > 0 {
		fmt.Fprintf(w, "  SNP name conflicts: %d\n", res.Conflicts)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Count reference, alternate and missing alleles of a VCF file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ingest.Statistics(vcf.FileSource(args[0]))
			if err != nil {
				return err
			}

			tw := output.NewTabWriter(cmd.OutOrStdout(), "sample", "refs", "alts", "missing")
			tw.WriteComment(fmt.Sprintf("samples: %d, records: %d", len(st.Samples), st.Records))
			tw.WriteHeader()
			for _, name := range st.Samples {
				c := st.PerSample[name]
				tw.Write(name, itoa(c.Refs), itoa(c.Alts), itoa(c.Missing))
			}
			tw.Write("total", itoa(st.Refs), itoa(st.Alts), itoa(st.Missing))
			return tw.Flush()
		},
	}
}

func (a *app) newUploadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "List or purge uploads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List committed uploads and provisional uploads still within retention",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cutoff := time.Now().Add(-viper.GetDuration("uploads.retention"))
			uploads, err := s.ListUploads(cmd.Context(), cutoff)
			if err != nil {
				return err
			}

			tw := output.NewTabWriter(cmd.OutOrStdout(), "id", "path", "created", "committed", "samples", "records")
			tw.WriteHeader()
			for _, u := range uploads {
				tw.Write(u.ID, u.Path, u.CreatedAt.Format(time.RFC3339),
					strconv.FormatBool(u.Committed), strconv.Itoa(u.Stats.Samples), strconv.Itoa(u.Stats.Records))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete provisional uploads older than the retention period",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cutoff := time.Now().Add(-viper.GetDuration("uploads.retention"))
			n, err := s.PurgeStaleUploads(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d stale uploads\n", n)
			return nil
		},
	})

	return cmd
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
