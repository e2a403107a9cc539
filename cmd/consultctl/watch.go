package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"consult-scribe-service/internal/config"
	"consult-scribe-service/internal/events"
)

// NewWatchCommand tails the consultation Kafka topics.
func NewWatchCommand() *cobra.Command {
	var (
		brokers []string
		since   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print consultation events from Kafka as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if len(brokers) == 0 {
				brokers = cfg.Kafka.Brokers
			}
			w, err := events.NewWatcher(events.WatchConfig{
				Brokers: brokers,
				Topics:  []string{cfg.Kafka.TopicTranscript, cfg.Kafka.TopicRecord},
				Since:   since,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return w.Run(cmd.Context(), func(ev events.Event) {
				switch {
				case ev.Transcript != nil:
					t := ev.Transcript
					fmt.Fprintf(out, "%s transcript gen=%d source=%s words=%d %s\n",
						t.ConsultationID, t.Generation, t.Source, t.WordCount, truncate(t.Text, 60))
				case ev.Record != nil:
					r := ev.Record
					fmt.Fprintf(out, "%s record     gen=%d latency=%dms patient=%q diagnosis=%q\n",
						r.ConsultationID, r.Generation, r.LatencyMs, r.Record.Patient.Name, truncate(r.Record.Diagnosis, 40))
				}
			})
		},
	}

	cmd.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka brokers (default KAFKA_BROKERS)")
	cmd.Flags().DurationVar(&since, "since", time.Hour, "replay events this far back; 0 for new events only")
	return cmd
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
