package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"consult-scribe-service/internal/observability/logging"
)

// NewRootCommand builds the consultctl command tree.
func NewRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "consultctl",
		Short: "Consultation scribe tooling: extract, render and talk to a running service",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableNoDescFlag:   true,
			DisableDescriptions: true,
			HiddenDefaultCmd:    true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitWriter(logging.Config{
				Level:  logLevel,
				Format: "console",
			}, cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		NewExtractCommand(),
		NewRenderCommand(),
		NewProcessCommand(),
		NewCaptureCommand(),
		NewWatchCommand(),
	)

	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	}
	return rootCmd
}

// readText returns the joined args, or the contents of file ("-" is stdin).
func readText(cmd *cobra.Command, file string, args []string) (string, error) {
	if file == "" {
		return strings.Join(args, " "), nil
	}
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	return string(b), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
