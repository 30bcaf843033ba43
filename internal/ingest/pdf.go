package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/solacehq/solace/internal/storage"
)

// FromPDF extracts numbered passages from a scripture PDF. Pages that fail
// text extraction are skipped; scanned-image PDFs therefore yield nothing
// rather than erroring page by page.
func FromPDF(path, source, prefix string) ([]storage.Verse, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	verses := SplitVerses(sb.String(), source, prefix)
	if len(verses) == 0 {
		return nil, fmt.Errorf("no numbered passages found in %s", path)
	}
	return verses, nil
}
