package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	elevenlabs "github.com/haguro/elevenlabs-go"
)

const MaxTextLength = 2500

// Synthesizer turns coach text into speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

type Audio struct {
	ContentType string
	Data        []byte
}

type ttsFunc func(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest) ([]byte, error)

type ElevenLabsClient struct {
	voiceID string
	model   string
	tts     ttsFunc
}

func NewElevenLabsClient(apiKey, voiceID, model string) *ElevenLabsClient {
	return &ElevenLabsClient{
		voiceID: voiceID,
		model:   model,
		tts: func(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest) ([]byte, error) {
			// The SDK binds a context per client.
			return elevenlabs.NewClient(ctx, apiKey, 30*time.Second).TextToSpeech(voiceID, req)
		},
	}
}

func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	if err := ValidateText(text); err != nil {
		return Audio{}, err
	}

	data, err := c.tts(ctx, c.voiceID, elevenlabs.TextToSpeechRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: &elevenlabs.VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return Audio{}, fmt.Errorf("tts request: %w", err)
	}
	return Audio{ContentType: "audio/mpeg", Data: data}, nil
}

var ErrInvalidText = errors.New("text must be between 1 and 2500 characters")

func ValidateText(text string) error {
	n := len([]rune(strings.TrimSpace(text)))
	if n == 0 || n > MaxTextLength {
		return ErrInvalidText
	}
	return nil
}
