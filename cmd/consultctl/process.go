package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"consult-scribe-service/internal/record"
)

// NewProcessCommand posts a transcript to a running service.
func NewProcessCommand() *cobra.Command {
	var (
		server  string
		file    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "process [transcript...]",
		Short: "Send a transcript to a running service's /process endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, file, args)
			if err != nil {
				return err
			}
			body, err := json.Marshal(map[string]string{"transcript": text})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				strings.TrimRight(server, "/")+"/process", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer resp.Body.Close()

			var out struct {
				Data  *record.Record `json:"data"`
				Error string         `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("%s (status %d)", out.Error, resp.StatusCode)
			}
			return printJSON(cmd.OutOrStdout(), out.Data)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8080", "service base URL")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the transcript from a file (\"-\" for stdin)")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")
	return cmd
}
