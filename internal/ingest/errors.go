package ingest

import (
	"fmt"
	"strings"
)

// TempFileError reports a failure creating, writing or removing the
// temporary copy of an upload. It is fatal to the Ingest call.
type TempFileError struct {
	Op   string
	Path string
	Err  error
}

func (e *TempFileError) Error() string {
	return fmt.Sprintf("%s temp file %s: %v", e.Op, e.Path, e.Err)
}

func (e *TempFileError) Unwrap() error {
	return e.Err
}

// ExtractionError names the upload the extractor could not parse.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract pages from %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// SkippedError lists the files left out of a SkipFailed run.
type SkippedError struct {
	Files []*ExtractionError
}

func (e *SkippedError) Error() string {
	names := make([]string, len(e.Files))
	for i, f := range e.Files {
		names[i] = f.File
	}
	return fmt.Sprintf("skipped %d file(s) that could not be extracted: %s", len(e.Files), strings.Join(names, ", "))
}

func (e *SkippedError) Unwrap() []error {
	errs := make([]error, len(e.Files))
	for i, f := range e.Files {
		errs[i] = f
	}
	return errs
}
