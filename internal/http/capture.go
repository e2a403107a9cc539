package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"consult-scribe-service/internal/app"
	"consult-scribe-service/internal/record"
	"consult-scribe-service/internal/service/audio"
	"consult-scribe-service/internal/service/capture"
	"consult-scribe-service/internal/service/consultation"
	"consult-scribe-service/internal/service/export"
	"consult-scribe-service/internal/service/extract"
	"consult-scribe-service/internal/service/stt"
	"consult-scribe-service/internal/service/stt/relay"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client message types.
const (
	msgStart  = "start"
	msgResult = "result"
	msgError  = "error"
	msgEnd    = "end"
	msgStop   = "stop"
	msgManual = "manual"
	msgCancel = "cancel"
	msgReset  = "reset"
	msgEdit   = "edit"
	msgSave   = "save"
)

// Edit operations.
const (
	opSetField      = "set_field"
	opSetSymptom    = "set_symptom"
	opAddSymptom    = "add_symptom"
	opRemoveSymptom = "remove_symptom"
)

type segmentMessage struct {
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence,omitempty"`
}

// clientMessage is a JSON text frame sent by the capture client.
type clientMessage struct {
	Type       string           `json:"type"`
	Available  *bool            `json:"available,omitempty"`
	Permission *bool            `json:"permission,omitempty"`
	Segments   []segmentMessage `json:"segments,omitempty"`
	Code       string           `json:"code,omitempty"`
	Text       string           `json:"text,omitempty"`
	Op         string           `json:"op,omitempty"`
	Field      string           `json:"field,omitempty"`
	Index      int              `json:"index,omitempty"`
	Value      string           `json:"value,omitempty"`
	Format     string           `json:"format,omitempty"`
}

// serverMessage is a JSON text frame sent to the capture client.
type serverMessage struct {
	Type           string         `json:"type"`
	ConsultationID string         `json:"consultationId,omitempty"`
	Supported      *bool          `json:"supported,omitempty"`
	State          string         `json:"state,omitempty"`
	Text           string         `json:"text,omitempty"`
	WordCount      int            `json:"wordCount,omitempty"`
	Code           string         `json:"code,omitempty"`
	Hint           string         `json:"hint,omitempty"`
	Message        string         `json:"message,omitempty"`
	Record         *record.Record `json:"record,omitempty"`
	File           string         `json:"file,omitempty"`
}

// captureSession owns one websocket connection and the consultation behind it.
type captureSession struct {
	app   *app.Application
	conn  *websocket.Conn
	ctx   context.Context
	log   zerolog.Logger
	cons  *consultation.Consultation
	rec   stt.Recognizer
	relay *relay.Recognizer
	audio *audio.Forwarder

	writeMu sync.Mutex
	wg      sync.WaitGroup

	// read loop only
	limitHit bool
}

// capture upgrades the request and serves one consultation over the socket.
func (h *handlers) capture(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &captureSession{
		app:  h.app,
		conn: conn,
		ctx:  ctx,
	}

	if h.app.Recognizers != nil {
		rec, err := h.app.Recognizers(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Recognizer unavailable, manual entry only")
		} else {
			s.rec = rec
		}
	}
	if rr, ok := s.rec.(*relay.Recognizer); ok {
		s.relay = rr
	}
	if ar, ok := s.rec.(stt.AudioRecognizer); ok {
		s.audio = audio.NewForwarder(ar, audio.Limits{
			MaxAudioBytes: h.app.Cfg.CaptureLimits.MaxAudioBytes,
			MaxDuration:   h.app.Cfg.CaptureLimits.MaxDuration,
		}, h.app.Metrics)
	}

	s.cons = h.app.NewConsultation(s.rec, s)
	s.log = log.With().
		Str("component", "capture-ws").
		Str("consultationId", s.cons.ID()).
		Str("requestId", middleware.GetReqID(r.Context())).
		Logger()
	s.log.Info().Bool("captureSupported", s.cons.CaptureSupported()).Msg("Capture session opened")

	s.wg.Add(1)
	go s.pingLoop()

	s.send(s.capability())
	s.readLoop()

	s.cons.Cancel()
	cancel()
	s.wg.Wait()
	if c, ok := s.rec.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close recognizer")
		}
	}
	s.log.Info().Msg("Capture session closed")
}

func (s *captureSession) capability() serverMessage {
	supported := s.cons.CaptureSupported()
	return serverMessage{
		Type:           "capability",
		ConsultationID: s.cons.ID(),
		Supported:      &supported,
	}
}

func (s *captureSession) readLoop() {
	limit := s.app.Cfg.CaptureLimits.MaxMessageBytes
	if limit > 0 {
		s.conn.SetReadLimit(limit)
	}
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.log.Error().Err(err).Msg("WebSocket read error")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch mt {
		case websocket.BinaryMessage:
			s.handleAudio(data)
		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.send(serverMessage{Type: "error", Code: "bad_message", Message: "Invalid message"})
				continue
			}
			s.handle(msg)
		}
	}
}

func (s *captureSession) handle(msg clientMessage) {
	switch msg.Type {
	case msgStart:
		if s.relay != nil {
			if msg.Available != nil {
				s.relay.SetAvailable(*msg.Available)
			}
			if msg.Permission != nil {
				s.relay.SetPermission(*msg.Permission)
			}
		}
		if s.audio != nil {
			s.audio.Reset()
		}
		s.limitHit = false
		if err := s.cons.StartCapture(s.ctx); err != nil {
			// Recoverable errors already reached the client through OnError.
			if !errors.Is(err, capture.ErrRecoverable) {
				s.sendError(err)
			}
		}

	case msgResult:
		if s.relay == nil {
			return
		}
		segs := make([]stt.Segment, 0, len(msg.Segments))
		for _, sm := range msg.Segments {
			segs = append(segs, stt.Segment{Text: sm.Text, Final: sm.Final, Confidence: sm.Confidence})
		}
		s.relay.PushResults(segs)

	case msgError:
		if s.relay != nil {
			s.relay.PushError(msg.Code)
		}

	case msgEnd:
		if s.relay != nil {
			s.relay.PushEnd()
		}

	case msgStop:
		s.stop()

	case msgManual:
		text := msg.Text
		s.async(func() {
			rec, err := s.cons.SubmitManual(s.ctx, text)
			s.sendResult(rec, err)
		})

	case msgCancel:
		s.cons.Cancel()

	case msgReset:
		s.cons.Reset()
		s.send(s.capability())

	case msgEdit:
		if err := s.edit(msg); err != nil {
			s.send(serverMessage{Type: "error", Code: "edit_failed", Message: err.Error()})
			return
		}
		if rec, ok := s.cons.Editor().Snapshot(); ok {
			s.send(serverMessage{Type: "record", Record: &rec})
		}

	case msgSave:
		s.save(msg.Format)

	default:
		s.send(serverMessage{Type: "error", Code: "bad_message", Message: "Unknown message type " + msg.Type})
	}
}

// stop ends capture off the read loop so late results keep flowing during
// the settle delay.
func (s *captureSession) stop() {
	s.async(func() {
		rec, err := s.cons.StopCapture(s.ctx)
		s.sendResult(rec, err)
	})
}

func (s *captureSession) edit(msg clientMessage) error {
	ed := s.cons.Editor()
	switch msg.Op {
	case opSetField:
		return ed.SetField(record.Field(msg.Field), msg.Value)
	case opSetSymptom:
		return ed.SetSymptom(msg.Index, msg.Value)
	case opAddSymptom:
		return ed.AddSymptom()
	case opRemoveSymptom:
		return ed.RemoveSymptom(msg.Index)
	default:
		return errors.New("unknown edit operation " + msg.Op)
	}
}

func (s *captureSession) save(format string) {
	now := time.Now()
	dir := s.app.Cfg.Document.OutputDir

	var name string
	var err error
	switch format {
	case export.FormatXLSX:
		rec, ok := s.cons.Editor().Snapshot()
		if !ok {
			err = record.ErrNoRecord
			break
		}
		name = export.FileName(rec.Patient.Name, now, export.FormatXLSX)
		err = export.XLSX(rec, now, dir)
	case export.FormatPDF, "":
		doc, derr := s.cons.Document(s.app.DocumentOptions(now))
		if derr != nil {
			err = derr
			break
		}
		name = export.PDFFileName(doc)
		err = export.PDF(doc, dir)
	default:
		s.send(serverMessage{Type: "error", Code: "save_failed", Message: "Unsupported format " + format})
		return
	}

	if err != nil {
		s.log.Error().Err(err).Msg("Failed to save report")
		s.send(serverMessage{Type: "error", Code: "save_failed", Message: "Error generating the document"})
		return
	}
	s.send(serverMessage{Type: "saved", File: name})
}

func (s *captureSession) handleAudio(frame []byte) {
	if s.audio == nil {
		s.send(serverMessage{Type: "warning", Code: "audio_unsupported", Hint: "This recognizer does not accept audio frames."})
		return
	}
	if s.limitHit {
		return
	}
	err := s.audio.Send(s.ctx, frame)
	var lerr *audio.LimitError
	switch {
	case errors.As(err, &lerr):
		s.limitHit = true
		s.send(serverMessage{Type: "warning", Code: lerr.Limit, Hint: "Recording limit reached. Capture was stopped."})
		s.stop()
	case err != nil:
		s.log.Debug().Err(err).Msg("Dropped audio frame")
	}
}

// sendResult reports the outcome of a submission. Superseded results are
// silent; the newer submission reports its own outcome.
func (s *captureSession) sendResult(rec record.Record, err error) {
	if err != nil {
		if errors.Is(err, consultation.ErrStaleResult) || errors.Is(err, capture.ErrSessionReplaced) {
			return
		}
		s.sendError(err)
		return
	}
	s.send(serverMessage{Type: "record", Record: &rec})
}

func (s *captureSession) sendError(err error) {
	msg := serverMessage{Type: "error", Message: err.Error()}
	var ce *capture.Error
	switch {
	case errors.Is(err, capture.ErrCaptureUnsupported):
		msg.Code = "unsupported"
		msg.Hint = "Speech capture is not available. Type the consultation instead."
	case errors.Is(err, capture.ErrNoSpeechDetected):
		msg.Code = stt.CodeNoSpeech
		msg.Hint = "No speech was detected. Try recording again."
	case errors.Is(err, capture.ErrNotRecording):
		msg.Code = "not_recording"
	case errors.As(err, &ce):
		msg.Code = ce.Code
		msg.Hint = ce.Hint
	default:
		_, text := extractionStatus(err)
		msg.Message = text
		if kind, ok := extract.KindOf(err); ok {
			msg.Code = kind.String()
		} else if errors.Is(err, extract.ErrEmptyTranscript) {
			msg.Code = "empty_transcript"
		}
	}
	s.send(msg)
}

func (s *captureSession) async(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *captureSession) send(msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode message")
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write message")
	}
}

func (s *captureSession) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// --- capture.Observer implementation ---

func (s *captureSession) OnStateChange(_, to capture.State) {
	s.send(serverMessage{Type: "state", State: to.String()})
}

func (s *captureSession) OnTranscript(text string) {
	s.send(serverMessage{Type: "transcript", Text: text, WordCount: capture.WordCount(text)})
}

func (s *captureSession) OnPreview(text string) {
	s.send(serverMessage{Type: "preview", Text: text})
}

func (s *captureSession) OnError(err *capture.Error) {
	s.send(serverMessage{Type: "error", Code: err.Code, Hint: err.Hint, Message: err.Error()})
}
