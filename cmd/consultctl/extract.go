package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"consult-scribe-service/internal/app"
	"consult-scribe-service/internal/config"
	"consult-scribe-service/internal/service/extract"
)

// NewExtractCommand extracts a record from a transcript with the configured model.
func NewExtractCommand() *cobra.Command {
	var file string
	var mock bool

	cmd := &cobra.Command{
		Use:   "extract [transcript...]",
		Short: "Extract a structured record from a consultation transcript",
		Long: "Sends the transcript to the configured LLM (LLM_* environment variables) and prints the record as JSON.\n" +
			"The transcript is taken from the arguments, or from --file (\"-\" reads stdin).",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, file, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return extract.ErrEmptyTranscript
			}

			cfg := config.Load()
			if mock {
				cfg.LLM.Provider = "mock"
			}
			provider, err := app.NewLLMProvider(cfg.LLM)
			if err != nil {
				return err
			}
			svc, err := extract.New(provider, extract.Config{
				Temperature: cfg.LLM.Temperature,
				MaxTokens:   cfg.LLM.MaxTokens,
				Timeout:     cfg.LLM.Timeout,
			})
			if err != nil {
				return err
			}

			rec, err := svc.Extract(cmd.Context(), text)
			if err != nil {
				var xerr *extract.Error
				if errors.As(err, &xerr) && xerr.Raw != "" {
					cmd.PrintErrln("model output:", xerr.Raw)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the transcript from a file (\"-\" for stdin)")
	cmd.Flags().BoolVar(&mock, "mock", false, "use the canned mock model instead of the configured provider")
	return cmd
}
