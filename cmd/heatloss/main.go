package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "heatloss",
		Short:         "Building physics practice question generator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("catalog-dir", "", "Load catalogs from <dir>/<kind>/*.yaml instead of the built-in ones")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(worksheetCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one question and print its prompt and answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.catalogDir, _ = cmd.Flags().GetString("catalog-dir")
			opts.seedSet = cmd.Flags().Changed("seed")
			return runGenerate(cmd.Context(), opts)
		},
	}

	addQuestionFlags(cmd, &opts.questionFlags)
	cmd.Flags().StringVarP(&opts.chartPath, "chart", "o", "", "Write the solution chart PNG to this file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the full question as JSON")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Check catalogs for integrity problems without generating anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("catalog-dir")
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(dir)
		},
	}
}

func worksheetCmd() *cobra.Command {
	var opts worksheetOptions

	cmd := &cobra.Command{
		Use:   "worksheet [output.xlsx]",
		Short: "Write a batch of questions with answers and charts to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.catalogDir, _ = cmd.Flags().GetString("catalog-dir")
			opts.seedSet = cmd.Flags().Changed("seed")
			opts.output = args[0]
			return runWorksheet(cmd.Context(), opts)
		},
	}

	addQuestionFlags(cmd, &opts.questionFlags)
	cmd.Flags().IntVarP(&opts.count, "count", "n", 10, "Number of questions")
	return cmd
}

func addQuestionFlags(cmd *cobra.Command, f *questionFlags) {
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "heat_loss", "Question kind: heat_loss or thermal_bridging")
	cmd.Flags().IntVarP(&f.layers, "layers", "l", 3, "Number of wall layers (3, 4 or 5)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Seed for a reproducible question")
	cmd.Flags().StringVar(&f.palette, "palette", "", "Chart palette: standard or colorblind")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log generation stages to stderr")
}
