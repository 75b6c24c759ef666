package interview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/frymyresume/interviewd/internal/ai"
)

// Message type tags.
const (
	TypeAudio             = "audio"
	TypeEndOfTurn         = "end_of_turn"
	TypeTranscriptFinal   = "transcript_final"
	TypeQuestion          = "question"
	TypeTurnComplete      = "turn_complete"
	TypeText              = "text"
	TypeResumeListening   = "resume_listening"
	TypeReviewing         = "reviewing"
	TypeInterviewComplete = "interview_complete"
	TypeError             = "error"
)

// Reasons carried by ResumeListeningMessage.
const (
	ReasonNoSpeech = "no_speech"
	ReasonTooShort = "too_short"
)

// AudioFormat describes the PCM samples forwarded to the client.
const AudioFormat = "pcm_s16le"

const (
	defaultCompany = "a company"
	defaultRole    = "a role"
)

var (
	// ErrUnknownMessage is returned for client messages with an unrecognized type.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrMalformedMessage is returned for client messages that are not valid JSON.
	ErrMalformedMessage = errors.New("malformed message")
)

// Handshake is the first message of every connection.
type Handshake struct {
	Company    string `json:"company"`
	Role       string `json:"role"`
	ResumeText string `json:"resume_text,omitempty"`
}

// DecodeHandshake parses the handshake and fills in defaults for missing
// company and role.
func DecodeHandshake(data []byte) (Handshake, error) {
	var hs Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return Handshake{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	hs.Company = strings.TrimSpace(hs.Company)
	if hs.Company == "" {
		hs.Company = defaultCompany
	}
	hs.Role = strings.TrimSpace(hs.Role)
	if hs.Role == "" {
		hs.Role = defaultRole
	}
	hs.ResumeText = strings.TrimSpace(hs.ResumeText)
	return hs, nil
}

// ClientMessage is one of AudioMessage, EndOfTurnMessage or
// TranscriptFinalMessage.
type ClientMessage interface {
	clientMessage()
}

// AudioMessage carries candidate PCM audio. Data is base64 on the wire.
type AudioMessage struct {
	Data []byte `json:"data"`
}

// EndOfTurnMessage signals that the candidate stopped speaking. A missing
// had_speech is treated as speech detected.
type EndOfTurnMessage struct {
	HadSpeech *bool `json:"had_speech"`
}

// SpeechDetected reports whether the client saw speech during the turn.
func (m EndOfTurnMessage) SpeechDetected() bool {
	return m.HadSpeech == nil || *m.HadSpeech
}

// TranscriptFinalMessage carries the client's own final transcript of an answer.
type TranscriptFinalMessage struct {
	QuestionNumber int    `json:"question_number"`
	Text           string `json:"text"`
}

func (AudioMessage) clientMessage()           {}
func (EndOfTurnMessage) clientMessage()       {}
func (TranscriptFinalMessage) clientMessage() {}

// DecodeClientMessage parses a client message according to its type tag.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var (
		msg ClientMessage
		err error
	)
	switch envelope.Type {
	case TypeAudio:
		var m AudioMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeEndOfTurn:
		var m EndOfTurnMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeTranscriptFinal:
		var m TranscriptFinalMessage
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, envelope.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, envelope.Type, err)
	}
	return msg, nil
}

// ServerMessage is a message sent to the client.
type ServerMessage interface {
	MessageType() string
}

// QuestionMessage carries the canonical text of a question.
type QuestionMessage struct {
	QuestionNumber int    `json:"question_number"`
	TotalQuestions int    `json:"total_questions"`
	Content        string `json:"content"`
}

// TurnCompleteMessage tells the client the interviewer finished asking.
type TurnCompleteMessage struct {
	QuestionNumber int `json:"question_number"`
	TotalQuestions int `json:"total_questions"`
}

// OutputAudioMessage carries interviewer speech.
type OutputAudioMessage struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	MIMEType   string `json:"mime_type,omitempty"`
	Data       []byte `json:"data"`
}

// TextMessage carries a live transcript line.
type TextMessage struct {
	Content string     `json:"content"`
	Speaker ai.Speaker `json:"speaker"`
}

// ResumeListeningMessage asks the client to keep capturing the answer.
type ResumeListeningMessage struct {
	Reason     string `json:"reason"`
	MinAudioMS int    `json:"min_audio_ms,omitempty"`
	MinChunks  int    `json:"min_chunks,omitempty"`
}

// ReviewingMessage is sent while the interview is being scored.
type ReviewingMessage struct {
	Message string `json:"message"`
}

// InterviewCompleteMessage carries the final evaluation.
type InterviewCompleteMessage struct {
	Score          int      `json:"score"`
	Disqualified   bool     `json:"disqualified"`
	Flags          ai.Flags `json:"flags"`
	ScoringVersion string   `json:"scoring_version"`
}

// ErrorMessage reports a terminal failure.
type ErrorMessage struct {
	Message string `json:"message"`
}

func (QuestionMessage) MessageType() string          { return TypeQuestion }
func (TurnCompleteMessage) MessageType() string      { return TypeTurnComplete }
func (OutputAudioMessage) MessageType() string       { return TypeAudio }
func (TextMessage) MessageType() string              { return TypeText }
func (ResumeListeningMessage) MessageType() string   { return TypeResumeListening }
func (ReviewingMessage) MessageType() string         { return TypeReviewing }
func (InterviewCompleteMessage) MessageType() string { return TypeInterviewComplete }
func (ErrorMessage) MessageType() string             { return TypeError }

// EncodeServerMessage renders msg as a JSON object whose first key is "type".
func EncodeServerMessage(msg ServerMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.MessageType(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s message: not an object", msg.MessageType())
	}

	tag, err := json.Marshal(msg.MessageType())
	if err != nil {
		return nil, fmt.Errorf("encode message type: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if inner := body[1 : len(body)-1]; len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
