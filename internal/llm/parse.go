package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/Veraticus/spice-insights/internal/common"
)

const fence = "```"

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, fence) {
		return text
	}

	text = strings.TrimPrefix(text, fence)
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		tag := strings.TrimSpace(text[:nl])
		if !strings.ContainsAny(tag, "{[ ") {
			text = text[nl+1:]
		}
	} else {
		// Single-line fence: drop a leading language tag glued to the payload.
		for _, tag := range []string{"json", "sql"} {
			if strings.HasPrefix(text, tag) {
				text = strings.TrimPrefix(text, tag)
				break
			}
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, fence)
	return strings.TrimSpace(text)
}

// ExtractFencedBlock returns the contents of the first ```lang fenced block in text.
func ExtractFencedBlock(text, lang string) (string, bool) {
	open := fence + lang
	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	body := text[start+len(open):]
	end := strings.Index(body, fence)
	if end < 0 {
		return "", false
	}
	block := strings.TrimSpace(body[:end])
	if block == "" {
		return "", false
	}
	return block, true
}

// DecodeJSON decodes an oracle response into v. Fences are stripped first and
// malformed JSON is repaired before giving up with common.ErrFormat.
func DecodeJSON(text string, v any) error {
	cleaned := StripFences(text)
	if cleaned == "" {
		return fmt.Errorf("%w: empty response", common.ErrFormat)
	}

	strictErr := json.Unmarshal([]byte(cleaned), v)
	if strictErr == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrFormat, strictErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("%w: %w", common.ErrFormat, err)
	}
	return nil
}
