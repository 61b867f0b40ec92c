package ingestion

import (
	"fmt"
	"sort"
	"strings"
)

// PageMetadata is the parsed per-page context metadata produced by the
// document parsing stage. It stays an open map because the parser's schema
// evolves independently of this module; the builders below only read the
// keys they know about.
type PageMetadata map[string]any

// DocumentID returns the document identifier, or "unknown" when absent.
func (m PageMetadata) DocumentID() string {
	if doc, ok := m["document_metadata"].(map[string]any); ok {
		if id, ok := doc["document_id"].(string); ok && id != "" {
			return id
		}
	}
	return "unknown"
}

// PageNumber returns the page number, or 0 when absent.
func (m PageMetadata) PageNumber() int {
	switch v := m["page_number"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// BuildEmbeddingText renders a page's structured metadata into the single
// text blob that all five vector representations are computed from. The
// layout is header (document, section, page) then per-element lines, then
// the full text content, then sorted aggregate tags. Empty parts are
// dropped; parts are separated by blank lines.
func BuildEmbeddingText(m PageMetadata) string {
	doc, _ := m["document_metadata"].(map[string]any)
	section, _ := m["section"].(map[string]any)
	elements := metaList(m, "content_elements")

	parts := []string{
		fmt.Sprintf("Document: %s (%s, Revision %s)",
			metaString(doc, "document_title"), metaString(doc, "manufacturer"), metaString(doc, "document_revision")),
		fmt.Sprintf("Section: %s %s", metaString(section, "section_number"), metaString(section, "section_title")),
		fmt.Sprintf("Subsection: %s %s", metaString(section, "subsection_number"), metaString(section, "subsection_title")),
		fmt.Sprintf("Page: %v", m["page_number"]),
	}

	for _, raw := range elements {
		el, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title := metaString(el, "title")
		summary := metaString(el, "summary")
		switch metaString(el, "type") {
		case "text_block":
			parts = append(parts, fmt.Sprintf("Text Block: %s\nSummary: %s", title, summary))
		case "figure":
			parts = append(parts, fmt.Sprintf("Figure: %s – %s", title, summary))
		case "table":
			parts = append(parts, fmt.Sprintf("Table: %s – %s", title, summary))
		}
	}

	if text := metaString(m, "text_content"); text != "" {
		parts = append(parts, "Full Text Content:\n"+text)
	}

	tags := collectElementTags(elements)
	parts = append(parts,
		tagLine("Entities", tags.entities),
		tagLine("Warnings", tags.warnings),
		tagLine("Keywords", tags.keywords),
		tagLine("Model Applicability", tags.models),
		tagLine("Context", tags.contexts),
	)

	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// elementTags are the deduplicated annotations aggregated across all content
// elements of a page.
type elementTags struct {
	entities []string
	keywords []string
	warnings []string
	contexts []string
	models   []string
	types    []string
}

// collectElementTags merges the per-element annotation lists, dropping
// duplicates and sorting each list for stable output.
func collectElementTags(elements []any) elementTags {
	entities := map[string]struct{}{}
	keywords := map[string]struct{}{}
	warnings := map[string]struct{}{}
	contexts := map[string]struct{}{}
	models := map[string]struct{}{}
	types := map[string]struct{}{}

	for _, raw := range elements {
		el, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		addAll(entities, el, "entities")
		addAll(keywords, el, "keywords")
		addAll(warnings, el, "warnings")
		addAll(contexts, el, "application_context")
		addAll(models, el, "model_applicability")
		if ct := metaString(el, "component_type"); ct != "" {
			types[ct] = struct{}{}
		}
	}

	return elementTags{
		entities: sortedKeys(entities),
		keywords: sortedKeys(keywords),
		warnings: sortedKeys(warnings),
		contexts: sortedKeys(contexts),
		models:   sortedKeys(models),
		types:    sortedKeys(types),
	}
}

func addAll(set map[string]struct{}, el map[string]any, key string) {
	list, _ := el[key].([]any)
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			set[s] = struct{}{}
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func tagLine(label string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	return label + ": " + strings.Join(values, ", ")
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func metaList(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	list, _ := m[key].([]any)
	return list
}
