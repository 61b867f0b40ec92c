package references

import "fmt"

// Deduplicate collapses references sharing an identity key, keeping the first
// occurrence in extraction order. Tables key on (element_id, page_number),
// figures on (label, page_number). Idempotent: applying it to its own output
// changes nothing.
func Deduplicate(refs References) References {
	out := References{
		Tables:  make([]TableReference, 0, len(refs.Tables)),
		Figures: make([]FigureReference, 0, len(refs.Figures)),
	}

	seenTables := make(map[string]bool, len(refs.Tables))
	for _, table := range refs.Tables {
		key := fmt.Sprintf("%s_%d", table.ElementID, table.PageNumber)
		if seenTables[key] {
			continue
		}
		seenTables[key] = true
		out.Tables = append(out.Tables, table)
	}

	seenFigures := make(map[string]bool, len(refs.Figures))
	for _, figure := range refs.Figures {
		key := fmt.Sprintf("%s_%d", figure.Label, figure.PageNumber)
		if seenFigures[key] {
			continue
		}
		seenFigures[key] = true
		out.Figures = append(out.Figures, figure)
	}

	return out
}
