package retrieval

import "github.com/54b3r/manualiq-go/internal/vecstore"

// FormattedResult is one retrieved page in canonical shape. Convenience
// fields are lifted out of the payload with defaults; the full payload is
// retained for downstream consumers that need locations the convenience
// fields do not cover.
type FormattedResult struct {
	// Score is the store-assigned similarity score.
	Score float32 `json:"score"`
	// ID is the point ID.
	ID uint64 `json:"id"`
	// Payload is the full payload as returned by the store.
	Payload map[string]any `json:"payload"`

	// Text is the embedding text built at ingestion time.
	Text string `json:"text"`
	// PageNumber is the 1-based page number, 0 when absent.
	PageNumber int `json:"page_number"`
	// DocumentTitle is the manual's title.
	DocumentTitle string `json:"document_title"`
	// DocumentID is the manual's ingestion identifier.
	DocumentID string `json:"document_id"`
	// SectionTitle is the enclosing section title.
	SectionTitle string `json:"section_title"`
	// SubsectionTitle is the enclosing subsection title.
	SubsectionTitle string `json:"subsection_title"`
	// Manufacturer is the equipment manufacturer.
	Manufacturer string `json:"manufacturer"`
	// ModelsCovered lists the equipment models the page applies to.
	ModelsCovered []string `json:"models_covered"`
	// Entities lists named entities extracted from the page.
	Entities []string `json:"entities"`
	// Keywords lists extracted keywords.
	Keywords []string `json:"keywords"`
	// Warnings lists safety warnings present on the page.
	Warnings []string `json:"warnings"`
	// HasTables reports whether the page contains tables.
	HasTables bool `json:"has_tables"`
	// HasFigures reports whether the page contains figures.
	HasFigures bool `json:"has_figures"`
	// TableCount is the number of tables on the page.
	TableCount int `json:"table_count"`
	// FigureCount is the number of figures on the page.
	FigureCount int `json:"figure_count"`

	// Fields below are promoted from the nested full_page_metadata blob when
	// it is present; otherwise they are zero.

	// PageVisualDescription describes the page layout.
	PageVisualDescription string `json:"page_visual_description,omitempty"`
	// ContentElements is the page's structured element list.
	ContentElements []any `json:"content_elements,omitempty"`
	// TextContent is the page's raw text.
	TextContent string `json:"text_content,omitempty"`
	// TextFile is the on-disk text file name.
	TextFile string `json:"text_file,omitempty"`
}

// Format shapes raw store results into FormattedResults. It is total: a
// missing or mistyped payload field yields that field's zero default, never
// an error. Every strategy shares this exact shaping.
func Format(raw []vecstore.RawResult) []FormattedResult {
	out := make([]FormattedResult, 0, len(raw))
	for _, r := range raw {
		f := FormattedResult{
			Score:           r.Score,
			ID:              r.ID,
			Payload:         r.Payload,
			Text:            payloadString(r.Payload, "embedding_text"),
			PageNumber:      payloadInt(r.Payload, "page_number"),
			DocumentTitle:   payloadString(r.Payload, "document_title"),
			DocumentID:      payloadString(r.Payload, "document_id"),
			SectionTitle:    payloadString(r.Payload, "section_title"),
			SubsectionTitle: payloadString(r.Payload, "subsection_title"),
			Manufacturer:    payloadString(r.Payload, "manufacturer"),
			ModelsCovered:   payloadStrings(r.Payload, "models_covered"),
			Entities:        payloadStrings(r.Payload, "entities"),
			Keywords:        payloadStrings(r.Payload, "keywords"),
			Warnings:        payloadStrings(r.Payload, "warnings"),
			HasTables:       payloadBool(r.Payload, "has_tables"),
			HasFigures:      payloadBool(r.Payload, "has_figures"),
			TableCount:      payloadInt(r.Payload, "table_count"),
			FigureCount:     payloadInt(r.Payload, "figure_count"),
		}
		if meta, ok := r.Payload["full_page_metadata"].(map[string]any); ok {
			f.PageVisualDescription = payloadString(meta, "page_visual_description")
			f.ContentElements = payloadList(meta, "content_elements")
			f.TextContent = payloadString(meta, "text_content")
			f.TextFile = payloadString(meta, "text_file")
		}
		out = append(out, f)
	}
	return out
}

// payloadString returns payload[key] as a string, "" when absent or mistyped.
func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// payloadInt returns payload[key] as an int. Store payloads carry integers as
// int64 and JSON round-trips produce float64; both are accepted.
func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// payloadBool returns payload[key] as a bool, false when absent or mistyped.
func payloadBool(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}

// payloadList returns payload[key] as a []any, empty when absent or mistyped.
func payloadList(payload map[string]any, key string) []any {
	l, _ := payload[key].([]any)
	if l == nil {
		return []any{}
	}
	return l
}

// payloadStrings returns payload[key] as a []string, skipping non-string
// elements. Empty when absent or mistyped.
func payloadStrings(payload map[string]any, key string) []string {
	l, _ := payload[key].([]any)
	out := make([]string, 0, len(l))
	for _, v := range l {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
