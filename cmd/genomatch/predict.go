package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/genomatch/internal/ancestry"
	"github.com/inodb/genomatch/internal/output"
	"github.com/inodb/genomatch/internal/vcf"
)

func (a *app) newPredictor() *ancestry.Predictor {
	p := ancestry.NewPredictor(ancestry.Config{
		Plink:        viper.GetString("ancestry.plink"),
		FastNGSadmix: viper.GetString("ancestry.fastngsadmix"),
		NIndFile:     viper.GetString("ancestry.nind_file"),
		RefPanel:     viper.GetString("ancestry.ref_panel"),
		Timeout:      viper.GetDuration("ancestry.timeout"),
	})
	p.SetLogger(a.logger)
	p.SetMetrics(a.metrics)
	return p
}

func (a *app) newPredictCmd() *cobra.Command {
	var (
		sample string
		single bool
	)

	cmd := &cobra.Command{
		Use:   "predict [--sample NAME | <file>]",
		Short: "Estimate population ancestry with plink and fastNGSadmix",
		Long: `Estimate the admixture proportions of a stored sample, or of every sample
of a VCF file. Predicting a stored sample records its most probable
population.`,
		Example: `  genomatch predict --sample HG00096
  genomatch predict --single upload.vcf`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (sample == "") == (len(args) == 0) {
				return usageError{fmt.Errorf("give either --sample or a file")}
			}
			p := a.newPredictor()

			if sample != "" {
				s, err := a.openStore()
				if err != nil {
					return err
				}
				defer s.Close()

				pred, err := p.PredictSample(cmd.Context(), s, sample)
				if err != nil {
					return err
				}
				return writePrediction(cmd, sample, pred)
			}

			src := vcf.FileSource(args[0])
			if single {
				if err := vcf.CheckSingleSample(src); err != nil {
					return err
				}
			} else if err := vcf.Validate(src); err != nil {
				return err
			}

			preds, err := p.PredictUpload(cmd.Context(), src)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(preds))
			for name := range preds {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if err := writePrediction(cmd, name, preds[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sample, "sample", "s", "", "Stored sample to predict")
	cmd.Flags().BoolVar(&single, "single", false, "Require exactly one sample in the file")
	return cmd
}

func writePrediction(cmd *cobra.Command, sample string, pred ancestry.Prediction) error {
	fmt.Fprintf(cmd.OutOrStdout(), "## %s\n", sample)
	return output.WriteRanking(cmd.OutOrStdout(), "population", "probability", pred)
}
