package gateway

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// Inbound message types
const (
	msgTypeAudioChunk = "audio_chunk"
	msgTypeControl    = "control"
)

// Outbound message types
const (
	msgTypeInfo          = "info"
	msgTypeError         = "error"
	msgTypeSpeechStarted = "speech_started"
	msgTypeASRStart      = "asr_start"
	msgTypeGLMStart      = "glm_start"
	msgTypeASRComplete   = "asr_complete"
	msgTypeGLMComplete   = "glm_complete"
	msgTypeReplyAudio    = "reply_audio_chunk"
)

// clientMessage is the envelope for every inbound JSON document.
type clientMessage struct {
	Type     string  `json:"type"`
	Data     string  `json:"data,omitempty"`     // audio_chunk: base64 PCM16 frame
	Action   string  `json:"action,omitempty"`   // control: "set_language"
	Language *string `json:"language,omitempty"` // nullable: "zh", "en", or null for auto
}

// statusMessage carries a human-readable status line to the client.
type statusMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// textMessage carries transcript or reply text to the client.
type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// replyAudioMessage carries one reply audio fragment. The final fragment of
// a turn has an empty payload and IsLast set.
type replyAudioMessage struct {
	Type   string `json:"type"`
	Data   string `json:"data"`
	IsLast bool   `json:"isLast"`
}

// Sender delivers outbound messages to one client connection. Sends after
// the connection closed return an error and are otherwise ignored.
type Sender interface {
	Send(v interface{}) error
}

// errConnClosed is returned for sends attempted after the connection closed.
var errConnClosed = errors.New("connection closed")

// wsSender serializes concurrent writers onto one websocket connection.
// The frame-ingestion path and per-utterance background tasks all write
// through it.
type wsSender struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{conn: conn}
}

// Send writes v as one JSON message, dropping the write if the connection
// has already closed.
func (s *wsSender) Send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errConnClosed
	}
	return s.conn.WriteJSON(v)
}

// close marks the connection closed; subsequent sends fail fast.
func (s *wsSender) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
