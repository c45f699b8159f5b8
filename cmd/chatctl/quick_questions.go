package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"saathi-backend/internal/locale"
)

func newQuickQuestionsCommand() *cobra.Command {
	var (
		language   string
		phrasebook string
	)

	cmd := &cobra.Command{
		Use:   "quick-questions",
		Short: "List the suggested starter questions for a language",
		Long:  "Lists quick questions from the built-in phrasebook, or from --phrasebook to check a replacement file before deploying it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				p   *locale.Phrasebook
				err error
			)
			if phrasebook != "" {
				p, err = locale.LoadFile(phrasebook)
			} else {
				p, err = locale.Default()
			}
			if err != nil {
				return err
			}

			lang := p.Normalize(language)
			out := cmd.OutOrStdout()
			if lang != language {
				fmt.Fprintf(out, "# %s\n", lang)
			}
			for i, q := range p.QuickQuestions(lang) {
				fmt.Fprintf(out, "%d. %s\n", i+1, q)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "en", "language tag")
	cmd.Flags().StringVar(&phrasebook, "phrasebook", "", "path to a phrasebook YAML file")
	return cmd
}
