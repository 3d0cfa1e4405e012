// Package postproc routes merged transcripts through a language model:
// cleanup for dictation, vision answers for screen queries, minutes for
// meetings.
package postproc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request is one generation call.
type Request struct {
	Model       string
	Prompt      string
	Images      [][]byte // raw image bytes, encoded for the wire here
	Temperature float64
	NumPredict  int
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Ollama calls a local Ollama server's /api/generate endpoint.
type Ollama struct {
	baseURL string
	client  *http.Client
}

func NewOllama(baseURL string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	images := make([]string, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, base64.StdEncoding.EncodeToString(img))
	}
	if req.NumPredict == 0 {
		req.NumPredict = 4096
	}

	payload, err := json.Marshal(generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Images: images,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.NumPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("generation: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generation: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("generation: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation: model error %d: %s", resp.StatusCode, body)
	}

	var gResp generateResponse
	if err := json.Unmarshal(body, &gResp); err != nil {
		return "", fmt.Errorf("generation: response parse: %w", err)
	}
	return strings.TrimSpace(gResp.Response), nil
}
