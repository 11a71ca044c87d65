package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type stubHTTPClient struct {
	status int
	body   string
	ct     string
	err    error
	last   *http.Request
}

func (c *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.last = req
	if c.err != nil {
		return nil, c.err
	}
	resp := &http.Response{
		StatusCode: c.status,
		Body:       io.NopCloser(strings.NewReader(c.body)),
		Header:     http.Header{},
	}
	if c.ct != "" {
		resp.Header.Set("Content-Type", c.ct)
	}
	return resp, nil
}

func TestTranscribe(t *testing.T) {
	client := &stubHTTPClient{status: 200, body: "hello world"}
	svc := NewSpeechService(client, "http://stt.local/transcribe", "http://tts.local/speak")

	text, err := svc.Transcribe(context.Background(), []byte{1, 2, 3}, "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if got := client.last.Header.Get("Content-Type"); got != "audio/wav" {
		t.Fatalf("unexpected content type: %q", got)
	}
}

func TestTranscribeUpstreamFailure(t *testing.T) {
	client := &stubHTTPClient{status: 500, body: "boom"}
	svc := NewSpeechService(client, "http://stt.local/transcribe", "")
	_, err := svc.Transcribe(context.Background(), []byte{1}, "")
	if se, ok := AsServiceError(err); !ok || se.Code != ErrorBadGateway {
		t.Fatalf("expected bad_gateway, got %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	client := &stubHTTPClient{status: 200, body: "AUDIO", ct: "audio/ogg"}
	svc := NewSpeechService(client, "", "http://tts.local/speak")

	audio, ct, err := svc.Synthesize(context.Background(), "read this")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if !bytes.Equal(audio, []byte("AUDIO")) || ct != "audio/ogg" {
		t.Fatalf("unexpected audio %q / %q", audio, ct)
	}
}

func TestSpeechValidation(t *testing.T) {
	svc := NewSpeechService(&stubHTTPClient{status: 200}, "", "")
	if _, err := svc.Transcribe(context.Background(), []byte{1}, ""); err == nil {
		t.Fatalf("expected error when transcribe endpoint unset")
	}
	if _, _, err := svc.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error when tts endpoint unset")
	}
	svc = NewSpeechService(&stubHTTPClient{status: 200}, "http://stt.local", "http://tts.local")
	if _, err := svc.Transcribe(context.Background(), nil, ""); err == nil {
		t.Fatalf("expected error for empty audio")
	}
	if _, _, err := svc.Synthesize(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}
