package gemini

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/frymyresume/interviewd/internal/ai"
)

const (
	// DefaultLiveModel is the speech-to-speech model used for the interview.
	DefaultLiveModel = "gemini-2.0-flash-exp"
	// DefaultVoice is the prebuilt interviewer voice.
	DefaultVoice = "Puck"
	// DefaultInputSampleRate is the sample rate of candidate PCM audio.
	DefaultInputSampleRate = 16000
	// DefaultOutputSampleRate is assumed when the model omits a rate.
	DefaultOutputSampleRate = 24000
)

type liveConnector interface {
	Connect(ctx context.Context, model string, config *genai.LiveConnectConfig) (liveStream, error)
}

type liveStream interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type sdkLive struct {
	live *genai.Live
}

func (s sdkLive) Connect(ctx context.Context, model string, config *genai.LiveConnectConfig) (liveStream, error) {
	return s.live.Connect(ctx, model, config)
}

// LiveOptions configures a LiveDialer.
type LiveOptions struct {
	Model           string
	Voice           string
	InputSampleRate int
}

// LiveDialer opens Gemini Live sessions with audio output and transcription of
// both directions.
type LiveDialer struct {
	live      liveConnector
	model     string
	voice     string
	inputMIME string
	logger    *zap.Logger
}

// NewLiveDialer creates a dialer on top of client.
func NewLiveDialer(client *genai.Client, opts LiveOptions, logger *zap.Logger) (*LiveDialer, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	return newLiveDialer(sdkLive{live: client.Live}, opts, logger), nil
}

func newLiveDialer(live liveConnector, opts LiveOptions, logger *zap.Logger) *LiveDialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Model = strings.TrimSpace(opts.Model); opts.Model == "" {
		opts.Model = DefaultLiveModel
	}
	if opts.Voice = strings.TrimSpace(opts.Voice); opts.Voice == "" {
		opts.Voice = DefaultVoice
	}
	if opts.InputSampleRate <= 0 {
		opts.InputSampleRate = DefaultInputSampleRate
	}

	return &LiveDialer{
		live:      live,
		model:     opts.Model,
		voice:     opts.Voice,
		inputMIME: fmt.Sprintf("audio/pcm;rate=%d", opts.InputSampleRate),
		logger:    logger,
	}
}

// Dial implements ai.LiveDialer.
func (d *LiveDialer) Dial(ctx context.Context, setup ai.LiveSetup) (ai.LiveSession, error) {
	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: d.voice},
			},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if instruction := strings.TrimSpace(setup.SystemInstruction); instruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: instruction}}}
	}

	stream, err := d.live.Connect(ctx, d.model, config)
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}

	d.logger.Debug("live session connected", zap.String("model", d.model), zap.String("voice", d.voice))

	return &liveSession{stream: stream, inputMIME: d.inputMIME}, nil
}

type liveSession struct {
	stream    liveStream
	inputMIME string
}

func (s *liveSession) SendText(text string) error {
	return s.stream.SendRealtimeInput(genai.LiveRealtimeInput{Text: text})
}

func (s *liveSession) SendAudio(pcm []byte) error {
	return s.stream.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: s.inputMIME},
	})
}

func (s *liveSession) EndAudio() error {
	return s.stream.SendRealtimeInput(genai.LiveRealtimeInput{AudioStreamEnd: true})
}

func (s *liveSession) Receive() (*ai.LiveEvent, error) {
	msg, err := s.stream.Receive()
	if err != nil {
		return nil, err
	}
	return convertMessage(msg), nil
}

func (s *liveSession) Close() error {
	return s.stream.Close()
}

func convertMessage(msg *genai.LiveServerMessage) *ai.LiveEvent {
	event := &ai.LiveEvent{}
	if msg == nil || msg.ServerContent == nil {
		return event
	}

	content := msg.ServerContent
	event.TurnComplete = content.TurnComplete
	event.Interrupted = content.Interrupted

	if content.InputTranscription != nil {
		event.InputTranscription = &ai.Transcription{
			Text:     content.InputTranscription.Text,
			Finished: content.InputTranscription.Finished,
		}
	}
	if content.OutputTranscription != nil {
		event.OutputTranscription = &ai.Transcription{
			Text:     content.OutputTranscription.Text,
			Finished: content.OutputTranscription.Finished,
		}
	}

	if content.ModelTurn == nil {
		return event
	}

	var text strings.Builder
	for _, part := range content.ModelTurn.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			event.Audio = append(event.Audio, ai.AudioChunk{
				Data:       part.InlineData.Data,
				MIMEType:   part.InlineData.MIMEType,
				SampleRate: SampleRate(part.InlineData.MIMEType),
			})
		}
		text.WriteString(part.Text)
	}
	event.Text = text.String()

	return event
}

// SampleRate extracts the rate parameter of an audio MIME type such as
// "audio/pcm;rate=24000", falling back to DefaultOutputSampleRate.
func SampleRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "rate") {
			continue
		}
		if rate, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && rate > 0 {
			return rate
		}
	}
	return DefaultOutputSampleRate
}
