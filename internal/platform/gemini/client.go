package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

var ErrMissingAPIKey = errors.New("gemini: api key not set")

// Part is either text or an inline attachment.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

func TextPart(s string) Part { return Part{Text: s} }

func BlobPart(mimeType string, data []byte) Part { return Part{MIMEType: mimeType, Data: data} }

type Request struct {
	Model       string
	System      string
	Parts       []Part
	Schema      *genai.Schema
	Temperature *float32
}

// Client wraps one long-lived genai client shared by all callers.
type Client struct {
	log *logger.Logger
	cl  *genai.Client
}

func NewClient(ctx context.Context, log *logger.Logger, apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Client{log: log.With("client", "GeminiClient"), cl: cl}, nil
}

// Generate sends one request and returns the first text candidate.
// With a Schema set the reply is requested as application/json.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c == nil || c.cl == nil {
		return "", ErrMissingAPIKey
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return "", fmt.Errorf("gemini: model is required")
	}
	m := c.cl.GenerativeModel(model)
	cfg := genai.GenerationConfig{Temperature: req.Temperature}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	m.GenerationConfig = cfg
	if s := strings.TrimSpace(req.System); s != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(s)}}
	}

	parts := make([]genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if len(p.Data) > 0 {
			parts = append(parts, genai.Blob{MIMEType: p.MIMEType, Data: p.Data})
			continue
		}
		parts = append(parts, genai.Text(p.Text))
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate (%s): %w", model, err)
	}
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("gemini generate (%s): prompt blocked: %s", model, resp.PromptFeedback.BlockReason)
	}
	raw := firstText(resp)
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("gemini generate (%s): empty response", model)
	}
	return raw, nil
}

func (c *Client) Close() error {
	if c == nil || c.cl == nil {
		return nil
	}
	return c.cl.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

// StripCodeFences removes a surrounding ```json ... ``` block if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
