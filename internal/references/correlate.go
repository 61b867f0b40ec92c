package references

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Correlate probes the on-disk page extracts under scratchDir and attaches
// whichever files exist. A missing file is not an error: the reference stays,
// un-enriched. References without a page number are never probed.
//
// Layout contract: tables live at page_{P}/tables/{ID}.png and .html; figures
// at page_{P}/images/{label}.png, with the fallback name
// image-{P}-{suffix}.png where suffix is the text after the label's last
// hyphen.
func Correlate(refs References, scratchDir string) References {
	for i, table := range refs.Tables {
		if table.PageNumber == 0 || table.ElementID == "" {
			continue
		}
		tablesDir := filepath.Join(scratchDir, fmt.Sprintf("page_%d", table.PageNumber), "tables")
		if png := filepath.Join(tablesDir, table.ElementID+".png"); fileExists(png) {
			refs.Tables[i].PNGFile = png
		}
		if html := filepath.Join(tablesDir, table.ElementID+".html"); fileExists(html) {
			refs.Tables[i].HTMLFile = html
		}
	}

	for i, figure := range refs.Figures {
		if figure.PageNumber == 0 || figure.Label == "" {
			continue
		}
		imagesDir := filepath.Join(scratchDir, fmt.Sprintf("page_%d", figure.PageNumber), "images")
		candidates := []string{
			filepath.Join(imagesDir, figure.Label+".png"),
			filepath.Join(imagesDir, fmt.Sprintf("image-%d-%s.png", figure.PageNumber, labelSuffix(figure.Label))),
		}
		for _, png := range candidates {
			if fileExists(png) {
				refs.Figures[i].PNGFile = png
				break
			}
		}
	}
	return refs
}

// labelSuffix returns the text after the last hyphen of a figure label
// ("figure-9-2" -> "2"), or the whole label when it has no hyphen.
func labelSuffix(label string) string {
	if i := strings.LastIndex(label, "-"); i >= 0 {
		return label[i+1:]
	}
	return label
}

// fileExists reports whether path exists as a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
