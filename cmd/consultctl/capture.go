package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"consult-scribe-service/internal/record"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// wsMessage is the subset of server messages the client reads.
type wsMessage struct {
	Type           string         `json:"type"`
	ConsultationID string         `json:"consultationId"`
	Supported      *bool          `json:"supported"`
	State          string         `json:"state"`
	Text           string         `json:"text"`
	WordCount      int            `json:"wordCount"`
	Code           string         `json:"code"`
	Hint           string         `json:"hint"`
	Message        string         `json:"message"`
	Record         *record.Record `json:"record"`
	File           string         `json:"file"`
}

type wavInfo struct {
	format        uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// readWAVHeader reads and validates a canonical 44-byte PCM header.
func readWAVHeader(r io.Reader) (wavInfo, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return wavInfo{}, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("not a valid WAV file")
	}
	info := wavInfo{
		format:        binary.LittleEndian.Uint16(header[20:22]),
		channels:      binary.LittleEndian.Uint16(header[22:24]),
		sampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		bitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if info.format != 1 {
		return info, errors.New("only PCM format supported")
	}
	return info, nil
}

// chunkBytes returns the size of one chunk of the given duration.
func (w wavInfo) chunkBytes(d time.Duration) int {
	perSecond := int(w.sampleRate) * int(w.channels) * int(w.bitsPerSample) / 8
	n := perSecond * int(d/time.Millisecond) / 1000
	if n <= 0 {
		n = 1600
	}
	return n
}

// NewCaptureCommand drives a /v1/capture session from the command line.
func NewCaptureCommand() *cobra.Command {
	var (
		server   string
		audio    string
		text     string
		save     string
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a consultation over the capture websocket",
		Long: "Streams a WAV file (16-bit PCM, server-side recognizer required) or submits --text as a manual\n" +
			"transcript, prints the extracted record and optionally saves the report on the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (audio == "") == (text == "") {
				return errors.New("exactly one of --audio or --text is required")
			}

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), server, nil)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer conn.Close()
			log.Info().Str("server", server).Msg("Connected")

			msgs := make(chan wsMessage, 64)
			go readMessages(conn, msgs)

			hello, err := waitFor(msgs, timeout, "capability")
			if err != nil {
				return err
			}
			log.Info().
				Str("consultationId", hello.ConsultationID).
				Bool("captureSupported", hello.Supported != nil && *hello.Supported).
				Msg("Consultation opened")

			if text != "" {
				if err := conn.WriteJSON(map[string]any{"type": "manual", "text": text}); err != nil {
					return err
				}
			} else if err := streamAudio(conn, audio, interval); err != nil {
				return err
			}

			res, err := waitFor(msgs, timeout, "record")
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res.Record); err != nil {
				return err
			}

			if save != "" {
				if err := conn.WriteJSON(map[string]any{"type": "save", "format": save}); err != nil {
					return err
				}
				saved, err := waitFor(msgs, timeout, "saved")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "saved", saved.File)
			}

			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "ws://localhost:8080/v1/capture", "capture websocket URL")
	cmd.Flags().StringVarP(&audio, "audio", "a", "", "WAV file to stream (16-bit PCM)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "manual transcript instead of audio")
	cmd.Flags().StringVar(&save, "save", "", "save the report on the server: pdf or xlsx")
	cmd.Flags().DurationVar(&interval, "chunk", 100*time.Millisecond, "audio chunk duration; chunks are paced in real time")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "time to wait for each server reply")
	return cmd
}

// streamAudio starts capture, sends the file in real-time chunks and stops.
func streamAudio(conn *websocket.Conn, path string, interval time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	info, err := readWAVHeader(f)
	if err != nil {
		return err
	}
	log.Info().
		Uint16("channels", info.channels).
		Uint32("sampleRate", info.sampleRate).
		Uint16("bitsPerSample", info.bitsPerSample).
		Msg("WAV file")

	if err := conn.WriteJSON(map[string]any{"type": "start"}); err != nil {
		return err
	}

	chunk := make([]byte, info.chunkBytes(interval))
	var total int64
	var chunks int
	start := time.Now()
	for {
		n, err := f.Read(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read audio: %w", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk[:n]); err != nil {
			return fmt.Errorf("failed to send frame: %w", err)
		}
		chunks++
		total += int64(n)
		if chunks%10 == 0 {
			log.Debug().Int("chunks", chunks).Int64("bytes", total).Msg("Streaming")
		}
		time.Sleep(interval)
	}
	log.Info().
		Int("chunks", chunks).
		Int64("bytes", total).
		Dur("elapsed", time.Since(start)).
		Msg("Finished streaming, waiting for the record")

	return conn.WriteJSON(map[string]any{"type": "stop"})
}

func readMessages(conn *websocket.Conn, out chan<- wsMessage) {
	defer close(out)
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Connection closed")
			}
			return
		}
		out <- msg
	}
}

// waitFor logs progress messages until one of type want arrives. An error
// message ends the wait.
func waitFor(msgs <-chan wsMessage, timeout time.Duration, want string) (wsMessage, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return wsMessage{}, errors.New("connection closed")
			}
			switch msg.Type {
			case want:
				return msg, nil
			case "state":
				log.Info().Str("state", msg.State).Msg("Capture state")
			case "transcript":
				log.Info().Int("words", msg.WordCount).Str("text", msg.Text).Msg("Transcript")
			case "preview":
				log.Debug().Str("text", msg.Text).Msg("Preview")
			case "warning":
				log.Warn().Str("code", msg.Code).Msg(msg.Hint)
			case "error":
				if msg.Hint != "" {
					return wsMessage{}, fmt.Errorf("%s: %s", msg.Code, msg.Hint)
				}
				return wsMessage{}, fmt.Errorf("%s: %s", msg.Code, msg.Message)
			}
		case <-deadline.C:
			return wsMessage{}, fmt.Errorf("timed out waiting for %s", want)
		}
	}
}
