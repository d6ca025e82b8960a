package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FetchURL downloads a web article and returns its readable text as an
// upload, so web sources can be ingested next to PDFs.
func FetchURL(ctx context.Context, source string) (UploadedFile, error) {
	parsed, err := url.Parse(source)
	if err != nil || parsed.Host == "" {
		return UploadedFile{}, fmt.Errorf("invalid URL %s", source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("create request for %s: %w", source, err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("could not fetch URL %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UploadedFile{}, fmt.Errorf("could not fetch URL %s: HTTP %d", source, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxInputSize)
	article, err := readability.FromReader(limited, parsed)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("could not extract article from %s: %w", source, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return UploadedFile{}, fmt.Errorf("no readable content extracted from %s", source)
	}

	return UploadedFile{
		Name: urlFileName(parsed),
		Data: []byte(text),
	}, nil
}

// urlFileName builds a filesystem-safe .txt name from a URL's host and path.
func urlFileName(u *url.URL) string {
	name := strings.Trim(unsafeNameRe.ReplaceAllString(u.Host+u.Path, "-"), "-.")
	if name == "" {
		name = "article"
	}
	return name + ".txt"
}
