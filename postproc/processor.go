package postproc

import (
	"context"
	"fmt"
	"strings"
)

const conversationPrompt = `You are a conversation transcription polishing assistant.
The text contains labels [Me] and [Other] indicating who spoke.
Rules:
- KEEP the labels [Me] and [Other] exactly as they are
- Remove hesitations (uh, uhm, hmm, eh, like, you know, so, well)
- Add correct punctuation
- Fix obvious transcription errors
- Keep the original meaning intact
- ALWAYS respond in the SAME LANGUAGE as the input text
- Respond ONLY with the cleaned text, no explanations or preambles.`

const visionPromptFmt = `You are looking at the user's computer screen. The user made the following voice request:

%q

Respond directly and helpfully based on what you see on the screen and the user's request. Respond ONLY with the requested content, no extra explanations. IMPORTANT: Respond in the SAME LANGUAGE as the user's request.`

const metaSummaryPrompt = `You received partial summaries of a long meeting. Combine them into a single coherent summary, keeping the format:
1. SUMMARY
2. DECISIONS
3. ACTION ITEMS
4. TOPICS
Eliminate redundancies and organize chronologically. IMPORTANT: Respond in the SAME LANGUAGE as the transcription.`

// Transcripts above this word count are summarized in blocks with a final
// combining pass.
const (
	summaryWordLimit = 3000
	summaryBlockSize = 2500
)

// Processor binds a Generator to the task-specific models and prompts.
type Processor struct {
	Gen           Generator
	CleanupModel  string
	VisionModel   string
	SummaryModel  string
	CleanupPrompt string
	SummaryPrompt string
}

// Cleanup polishes raw dictated text. An empty model response falls back to
// the input so a flaky model never swallows the dictation.
func (p *Processor) Cleanup(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	out, err := p.Gen.Generate(ctx, Request{
		Model:       p.CleanupModel,
		Prompt:      p.CleanupPrompt + "\n\nTranscribed text:\n" + raw,
		Temperature: 0.1,
		NumPredict:  2048,
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return raw, nil
	}
	return out, nil
}

// CleanupConversation polishes a [Me]/[Other] labeled transcript while
// preserving the labels.
func (p *Processor) CleanupConversation(ctx context.Context, labeled string) (string, error) {
	if strings.TrimSpace(labeled) == "" {
		return "", nil
	}
	out, err := p.Gen.Generate(ctx, Request{
		Model:       p.CleanupModel,
		Prompt:      conversationPrompt + "\n\nTranscription:\n" + labeled,
		Temperature: 0.1,
		NumPredict:  4096,
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return labeled, nil
	}
	return out, nil
}

// ScreenQuery answers a spoken command against a screenshot. With no image
// the command is sent as a plain prompt.
func (p *Processor) ScreenQuery(ctx context.Context, command string, image []byte) (string, error) {
	req := Request{
		Model:       p.VisionModel,
		Prompt:      command,
		Temperature: 0.3,
	}
	if image != nil {
		req.Prompt = fmt.Sprintf(visionPromptFmt, command)
		req.Images = [][]byte{image}
	}
	return p.Gen.Generate(ctx, req)
}

// Summarize produces meeting minutes. Long transcripts are summarized in
// word blocks and combined with a meta pass; if the meta pass fails the
// joined partials are returned rather than nothing.
func (p *Processor) Summarize(ctx context.Context, transcript string) (string, error) {
	words := strings.Fields(transcript)
	if len(words) <= summaryWordLimit {
		return p.summarizeBlock(ctx, transcript)
	}

	var partials []string
	for i, n := 0, 0; i < len(words); i, n = i+summaryBlockSize, n+1 {
		end := min(i+summaryBlockSize, len(words))
		block := strings.Join(words[i:end], " ")
		summary, err := p.summarizeBlock(ctx, block)
		if err != nil {
			return "", err
		}
		if summary != "" {
			partials = append(partials, fmt.Sprintf("## Part %d\n\n%s", n+1, summary))
		}
	}
	if len(partials) == 0 {
		return "", fmt.Errorf("generation: no partial summaries produced")
	}
	if len(partials) == 1 {
		return partials[0], nil
	}

	combined := strings.Join(partials, "\n\n---\n\n")
	meta, err := p.Gen.Generate(ctx, Request{
		Model:       p.SummaryModel,
		Prompt:      metaSummaryPrompt + "\n\nPartial summaries:\n\n" + combined,
		Temperature: 0.3,
	})
	if err != nil || meta == "" {
		return combined, nil
	}
	return meta, nil
}

func (p *Processor) summarizeBlock(ctx context.Context, text string) (string, error) {
	return p.Gen.Generate(ctx, Request{
		Model:       p.SummaryModel,
		Prompt:      p.SummaryPrompt + "\n\nMeeting transcription:\n\n" + text,
		Temperature: 0.3,
	})
}
