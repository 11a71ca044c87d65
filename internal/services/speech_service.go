package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SpeechService forwards audio and text to external transcription and
// text-to-speech endpoints. Both collaborators are opaque request/response
// services; their failures surface as ordinary bad_gateway errors with no
// compensating logic or retries.
type SpeechService struct {
	client        HTTPClient
	transcribeURL string
	ttsURL        string
}

func NewSpeechService(client HTTPClient, transcribeURL, ttsURL string) *SpeechService {
	if client == nil {
		client = http.DefaultClient
	}
	return &SpeechService{client: client, transcribeURL: transcribeURL, ttsURL: ttsURL}
}

// Transcribe posts raw audio and returns the recognized text.
func (s *SpeechService) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	if strings.TrimSpace(s.transcribeURL) == "" {
		return "", NewInvalidError("transcription endpoint not configured")
	}
	if len(audio) == 0 {
		return "", NewInvalidError("audio payload required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.transcribeURL, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", NewBadGatewayError(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", NewBadGatewayError(string(b))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewBadGatewayError(err.Error())
	}
	return string(b), nil
}

// Synthesize posts text and returns the rendered audio plus its media type.
func (s *SpeechService) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(s.ttsURL) == "" {
		return nil, "", NewInvalidError("tts endpoint not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, "", NewInvalidError("text required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ttsURL, strings.NewReader(text))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", NewBadGatewayError(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, "", NewBadGatewayError(string(b))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", NewBadGatewayError(err.Error())
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	return audio, ct, nil
}
