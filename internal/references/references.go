// Package references turns retrieved manual pages into a deduplicated,
// file-backed citation set: table and figure identifiers are pulled from five
// payload locations, correlated against the on-disk page extracts, and
// deduplicated by (identifier, page) with first occurrence winning.
package references

import (
	"github.com/54b3r/manualiq-go/internal/retrieval"
)

// TableReference cites a table in the source manual. PageNumber 0 means the
// page is unknown; file fields are empty when no extract exists on disk.
type TableReference struct {
	// SubQuestion is the sub-question whose results surfaced the table.
	SubQuestion string `json:"sub_question"`
	// ElementID is the manual-assigned table ID (e.g. "table-36-1").
	ElementID string `json:"element_id"`
	// PageNumber is the 1-based page, 0 when unknown.
	PageNumber int `json:"page_number,omitempty"`
	// PNGFile is the rendered table image path, if found on disk.
	PNGFile string `json:"png_file,omitempty"`
	// HTMLFile is the extracted table HTML path, if found on disk.
	HTMLFile string `json:"html_file,omitempty"`
}

// FigureReference cites a figure in the source manual.
type FigureReference struct {
	// SubQuestion is the sub-question whose results surfaced the figure.
	SubQuestion string `json:"sub_question"`
	// Label is the manual-assigned figure label (e.g. "figure-9-2").
	Label string `json:"label"`
	// PageNumber is the 1-based page, 0 when unknown.
	PageNumber int `json:"page_number,omitempty"`
	// PNGFile is the figure image path, if found on disk.
	PNGFile string `json:"png_file,omitempty"`
}

// References is the citation bundle for one answered question.
type References struct {
	// Tables are the cited tables, deduplicated, in first-appearance order.
	Tables []TableReference `json:"tables"`
	// Figures are the cited figures, deduplicated, in first-appearance order.
	Figures []FigureReference `json:"figures"`
}

// ResultSet pairs a sub-question with its retrieved result documents.
// Order matters: first-appearance dedup follows set order, then result
// order, then extractor order.
type ResultSet struct {
	// SubQuestion is the sub-question text.
	SubQuestion string
	// Results are the result documents for that sub-question (see Docs).
	Results []map[string]any
}

// Docs converts formatted retrieval results to the document shape the
// extractors scan: the stored payload with the nested page-metadata keys and
// the convenience fields overlaid at top level.
func Docs(results []retrieval.FormattedResult) []map[string]any {
	docs := make([]map[string]any, 0, len(results))
	for _, r := range results {
		doc := make(map[string]any, len(r.Payload)+2)
		for k, v := range r.Payload {
			doc[k] = v
		}
		if meta, ok := r.Payload["full_page_metadata"].(map[string]any); ok {
			for k, v := range meta {
				doc[k] = v
			}
		}
		doc["page_number"] = r.PageNumber
		if len(r.ContentElements) > 0 {
			doc["content_elements"] = r.ContentElements
		}
		docs = append(docs, doc)
	}
	return docs
}

// Extract runs the full pipeline: extractor chain over every result of every
// sub-question, file correlation under scratchDir, then deduplication.
// It never fails; malformed payload entries are skipped.
func Extract(sets []ResultSet, scratchDir string) References {
	var refs References
	for _, set := range sets {
		for _, doc := range set.Results {
			for _, ex := range extractors {
				tables, figures := ex(doc, set.SubQuestion)
				refs.Tables = append(refs.Tables, tables...)
				refs.Figures = append(refs.Figures, figures...)
			}
		}
	}
	refs = Correlate(refs, scratchDir)
	return Deduplicate(refs)
}
