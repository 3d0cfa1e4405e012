package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"murmur/encoder"
	"murmur/wavio"
)

// Whisper talks to an OpenAI-compatible /audio/transcriptions endpoint.
// Artifacts are compressed to FLAC before upload.
type Whisper struct {
	url    string
	apiKey string
	model  string
	lang   string
	client *http.Client
}

func NewWhisper(url, apiKey, model, lang string, timeout time.Duration) *Whisper {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Whisper{
		url:    url,
		apiKey: apiKey,
		model:  model,
		lang:   lang,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *Whisper) Name() string { return "whisper" }

type whisperResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

func (w *Whisper) Transcribe(ctx context.Context, wavPath string) ([]Segment, error) {
	samples, rate, err := wavio.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	flacData, err := encoder.EncodeFLAC(samples, rate)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	return w.submit(ctx, flacData)
}

// TranscribeSamples submits in-memory PCM, used by chunked transcription to
// avoid rewriting chunk files.
func (w *Whisper) TranscribeSamples(ctx context.Context, samples []int16, rate int) ([]Segment, error) {
	flacData, err := encoder.EncodeFLAC(samples, rate)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	return w.submit(ctx, flacData)
}

func (w *Whisper) submit(ctx context.Context, flacData []byte) ([]Segment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.flac")
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	if _, err := part.Write(flacData); err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}

	writer.WriteField("model", w.model)
	writer.WriteField("response_format", "verbose_json")
	if w.lang != "" {
		writer.WriteField("language", w.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, &body)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transcription: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription: engine error %d: %s", resp.StatusCode, respBody)
	}

	var wResp whisperResponse
	if err := json.Unmarshal(respBody, &wResp); err != nil {
		return nil, fmt.Errorf("transcription: response parse: %w", err)
	}

	segments := make([]Segment, 0, len(wResp.Segments))
	for _, s := range wResp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: text})
	}
	// Some engines return plain text without segment detail.
	if len(segments) == 0 && strings.TrimSpace(wResp.Text) != "" {
		segments = append(segments, Segment{Text: strings.TrimSpace(wResp.Text)})
	}
	return segments, nil
}
