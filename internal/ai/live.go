package ai

import "context"

// Transcription is an incremental speech-to-text fragment.
type Transcription struct {
	Text     string
	Finished bool
}

// AudioChunk is a slice of PCM audio emitted by the upstream speaker.
type AudioChunk struct {
	Data       []byte
	MIMEType   string
	SampleRate int
}

// LiveEvent is one message received from a live speech session.
type LiveEvent struct {
	Audio []AudioChunk
	// Text carries textual model output; it is never shown to the candidate.
	Text                string
	InputTranscription  *Transcription
	OutputTranscription *Transcription
	TurnComplete        bool
	Interrupted         bool
}

// LiveSession is a bidirectional streaming conversation with a speech model.
// Send methods may be called concurrently with Receive, but not with each other.
type LiveSession interface {
	// SendText delivers a one-shot instruction.
	SendText(text string) error
	// SendAudio streams a chunk of candidate PCM audio.
	SendAudio(pcm []byte) error
	// EndAudio signals that the candidate audio stream ended.
	EndAudio() error
	// Receive blocks until the next event arrives.
	Receive() (*LiveEvent, error)
	Close() error
}

// LiveSetup configures a new live session.
type LiveSetup struct {
	SystemInstruction string
}

// LiveDialer opens live sessions.
type LiveDialer interface {
	Dial(ctx context.Context, setup LiveSetup) (LiveSession, error)
}
