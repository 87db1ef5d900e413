package oracle

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

// parseClassification decodes the classifier's JSON reply. Mentions with no
// usable signal at all (no id, no name, no description) are dropped rather
// than sent into the resolver.
func parseClassification(text string) (model.Classification, error) {
	text = cleanJSON(text)

	var raw struct {
		HasOrder   bool            `json:"has_order"`
		HasInquiry bool            `json:"has_inquiry"`
		Mentions   []model.Mention `json:"mentions"`
		Inquiries  []string        `json:"inquiries"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return model.Classification{}, eris.Wrap(err, "oracle: unmarshal classification")
	}

	cls := model.Classification{
		HasOrder:   raw.HasOrder,
		HasInquiry: raw.HasInquiry,
		Inquiries:  raw.Inquiries,
	}
	for _, m := range raw.Mentions {
		if strings.TrimSpace(m.ProductID) == "" &&
			strings.TrimSpace(m.Name) == "" &&
			strings.TrimSpace(m.Description) == "" {
			continue
		}
		cls.Mentions = append(cls.Mentions, m)
	}
	return cls, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
