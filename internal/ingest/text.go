package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextExtractor treats a plain-text file as a single page.
type TextExtractor struct{}

func (t *TextExtractor) Extract(ctx context.Context, path string) ([]PageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read file: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("file is empty")
	}

	return []PageRecord{{
		Source: filepath.Base(path),
		Page:   1,
		Text:   string(data),
		Metadata: map[string]any{
			"page":        1,
			"total_pages": 1,
			"word_count":  wordCount(string(data)),
		},
	}}, nil
}

func wordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}
