package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel     = "claude-3-5-sonnet-20241022"
	generateMaxToken = 500
)

var prompts = map[string]string{
	"th": `สร้างคำคมเตือนใจที่สร้างแรงบันดาลใจ 1 ข้อ โดยมีลักษณะดังนี้:
- สั้น กระชับ และมีความหมายลึกซึ้ง
- เหมาะสำหรับแชร์ในโซเชียลมีเดีย
- ไม่ซ้ำซาก
- ไม่ต้องระบุผู้แต่ง (ใส่ "ไม่ระบุ")

ตอบเป็น JSON เท่านั้น:
{
  "text": "คำคมที่สร้างขึ้น",
  "author": "ไม่ระบุ",
  "language": "th"
}`,
	"en": `Generate 1 original, inspirational quote with these characteristics:
- Short, concise, and meaningful
- Suitable for social media sharing
- Unique and not cliché
- Author can be "Unknown" if not applicable

Respond ONLY with valid JSON:
{
  "text": "the quote text",
  "author": "author name",
  "language": "en"
}`,
}

// AnthropicGenerator produces quotes through the Anthropic Messages API.
type AnthropicGenerator struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicGenerator{client: &client, model: model}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, lang string) (Quote, error) {
	prompt, ok := prompts[lang]
	if !ok {
		return Quote{}, fmt.Errorf("no prompt for language %q", lang)
	}

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: generateMaxToken,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Quote{}, fmt.Errorf("anthropic generate: %w", err)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		return Quote{}, errors.New("anthropic generate: empty response")
	}

	return parseGenerated(strings.TrimSpace(text), lang), nil
}

// parseGenerated decodes the model output, tolerating markdown code fences
// and non-JSON replies.
func parseGenerated(content, lang string) Quote {
	if strings.HasPrefix(content, "```") {
		parts := strings.Split(content, "```")
		if len(parts) >= 2 {
			content = strings.TrimSpace(parts[1])
			// Drop a leading fence language identifier ("json", ...).
			if i := strings.IndexByte(content, '\n'); i > 0 && !strings.HasPrefix(content, "{") {
				content = strings.TrimSpace(content[i+1:])
			}
		}
	}

	var q Quote
	if err := json.Unmarshal([]byte(content), &q); err != nil {
		// Not JSON; treat the whole reply as the quote text.
		return Quote{Text: content, Author: "Claude AI", Language: lang}
	}
	if q.Text == "" {
		q.Text = content
	}
	if q.Author == "" {
		q.Author = "Claude AI"
	}
	if q.Language == "" {
		q.Language = lang
	}
	return q
}
