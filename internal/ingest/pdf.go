package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFExtractor emits one record per page. The file is validated with pdfcpu
// in relaxed mode first so broken uploads fail with a structural error rather
// than a confusing text-extraction one.
type PDFExtractor struct {
	// SkipValidation disables the pdfcpu structure check.
	SkipValidation bool
}

func (x *PDFExtractor) Extract(ctx context.Context, path string) ([]PageRecord, error) {
	if !x.SkipValidation {
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed
		if err := api.ValidateFile(path, conf); err != nil {
			return nil, fmt.Errorf("invalid PDF: %w", err)
		}
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read PDF: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	records := make([]PageRecord, 0, numPages)

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Blank or image-only pages keep their slot so page indexes stay stable.
		var text string
		page := r.Page(i)
		if !page.V.IsNull() {
			t, err := page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("extract page %d: %w", i, err)
			}
			text = strings.TrimSpace(t)
		}

		records = append(records, PageRecord{
			Source: filepath.Base(path),
			Page:   i,
			Text:   text,
			Metadata: map[string]any{
				"page":        i,
				"total_pages": numPages,
			},
		})
	}

	return records, nil
}
