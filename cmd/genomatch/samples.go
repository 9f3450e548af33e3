package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/genomatch/internal/output"
)

func (a *app) newSamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "List stored samples",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			samples, err := s.Samples(cmd.Context())
			if err != nil {
				return err
			}

			tw := output.NewTabWriter(cmd.OutOrStdout(),
				"sample", "gender", "nationality", "predicted_nationality", "upload")
			tw.WriteHeader()
			for _, smp := range samples {
				tw.Write(smp.Cypher, smp.Gender, smp.Nationality, smp.PredictedNationality, smp.UploadID)
			}
			return tw.Flush()
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export <sample>",
		Short: "Write a stored sample as a genotype VCF",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := s.SampleDocument(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("sample %s: %w", args[0], err)
			}

			if outputFile == "" {
				return doc.Write(cmd.OutOrStdout())
			}
			if err := doc.Save(outputFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d records to %s\n", len(doc.Records), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
