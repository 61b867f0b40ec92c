package references

// extractor scans one payload location of one result document and returns the
// references it found there. Extractors are pure and absorb malformed
// entries: a wrong type or missing key skips the entry, never aborts.
type extractor func(doc map[string]any, subQuestion string) ([]TableReference, []FigureReference)

// extractors is the fixed, ordered chain. All of them run over every result;
// a single page can contribute references from several locations at once.
var extractors = []extractor{
	extractContentElements,
	extractFlattenedTables,
	extractTableMetadata,
	extractContentSummary,
	extractWithinPageRelations,
}

// extractContentElements pulls tables and figures from content_elements[]:
// "table" elements by element_id, "figure" elements by figure_id.
func extractContentElements(doc map[string]any, subQuestion string) ([]TableReference, []FigureReference) {
	var tables []TableReference
	var figures []FigureReference
	page := docInt(doc, "page_number")

	for _, el := range docList(doc, "content_elements") {
		element, ok := el.(map[string]any)
		if !ok {
			continue
		}
		switch docString(element, "type") {
		case "table":
			if id := docString(element, "element_id"); validID(id) {
				tables = append(tables, TableReference{
					SubQuestion: subQuestion,
					ElementID:   id,
					PageNumber:  page,
				})
			}
		case "figure":
			if id := docString(element, "figure_id"); validID(id) {
				figures = append(figures, FigureReference{
					SubQuestion: subQuestion,
					Label:       id,
					PageNumber:  page,
				})
			}
		}
	}
	return tables, figures
}

// extractFlattenedTables pulls tables from flattened_tables[] by table_id.
func extractFlattenedTables(doc map[string]any, subQuestion string) ([]TableReference, []FigureReference) {
	return tablesByID(doc, subQuestion, "flattened_tables"), nil
}

// extractTableMetadata pulls tables from table_metadata[] by table_id.
func extractTableMetadata(doc map[string]any, subQuestion string) ([]TableReference, []FigureReference) {
	return tablesByID(doc, subQuestion, "table_metadata"), nil
}

// tablesByID scans a list of table entries under key for table_id values.
func tablesByID(doc map[string]any, subQuestion, key string) []TableReference {
	var tables []TableReference
	page := docInt(doc, "page_number")

	for _, entry := range docList(doc, key) {
		table, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id := docString(table, "table_id"); validID(id) {
			tables = append(tables, TableReference{
				SubQuestion: subQuestion,
				ElementID:   id,
				PageNumber:  page,
			})
		}
	}
	return tables
}

// extractContentSummary pulls figures from content_summary.figures[], whose
// entries are the labels themselves.
func extractContentSummary(doc map[string]any, subQuestion string) ([]TableReference, []FigureReference) {
	var figures []FigureReference
	page := docInt(doc, "page_number")

	summary, ok := doc["content_summary"].(map[string]any)
	if !ok {
		return nil, nil
	}
	for _, entry := range docList(summary, "figures") {
		label, ok := entry.(string)
		if !ok || !validID(label) {
			continue
		}
		figures = append(figures, FigureReference{
			SubQuestion: subQuestion,
			Label:       label,
			PageNumber:  page,
		})
	}
	return nil, figures
}

// extractWithinPageRelations pulls figures from
// content_elements[*].within_page_relations.related_figures[] by label.
func extractWithinPageRelations(doc map[string]any, subQuestion string) ([]TableReference, []FigureReference) {
	var figures []FigureReference
	page := docInt(doc, "page_number")

	for _, el := range docList(doc, "content_elements") {
		element, ok := el.(map[string]any)
		if !ok {
			continue
		}
		relations, ok := element["within_page_relations"].(map[string]any)
		if !ok {
			continue
		}
		for _, entry := range docList(relations, "related_figures") {
			figure, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if label := docString(figure, "label"); validID(label) {
				figures = append(figures, FigureReference{
					SubQuestion: subQuestion,
					Label:       label,
					PageNumber:  page,
				})
			}
		}
	}
	return nil, figures
}

// validID reports whether an identifier is usable. Upstream metadata
// extraction serializes missing values as the literal string "None"; those
// are noise, not references.
func validID(id string) bool {
	return id != "" && id != "None"
}

// docString returns doc[key] as a string, "" when absent or mistyped.
func docString(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

// docInt returns doc[key] as an int, accepting the int64/float64 forms store
// payloads and JSON decoding produce. 0 when absent or mistyped.
func docInt(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// docList returns doc[key] as a []any, nil when absent or mistyped.
func docList(doc map[string]any, key string) []any {
	l, _ := doc[key].([]any)
	return l
}
