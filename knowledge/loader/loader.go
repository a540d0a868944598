package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/amirmolavi/llamabot/knowledge/chunk"
)

// MaxFileSizeBytes caps how much of a source document is read.
const MaxFileSizeBytes = 8 * 1024 * 1024

// Load reads one source file into a document. The content type is
// sniffed from the bytes, PDFs go through plain-text extraction, and
// textual content is decoded to normalized UTF-8 (CRLF and CR become
// LF). Unknown binary content is rejected.
func Load(path string) (chunk.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return chunk.Document{}, fmt.Errorf("loader: stat %q: %w", path, err)
	}
	if info.IsDir() {
		return chunk.Document{}, fmt.Errorf("loader: %q is a directory", path)
	}
	if info.Size() > MaxFileSizeBytes {
		return chunk.Document{}, fmt.Errorf("loader: %q exceeds maximum size of %d bytes", path, MaxFileSizeBytes)
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return chunk.Document{}, fmt.Errorf("loader: detect content type of %q: %w", path, err)
	}
	var text string
	switch {
	case detected.Is("application/pdf"):
		text, err = extractPDFText(path)
	case isTextual(detected):
		text, err = readTextFile(path, detected.String())
	default:
		return chunk.Document{}, fmt.Errorf("loader: unsupported content type %q for %q", detected.String(), path)
	}
	if err != nil {
		return chunk.Document{}, err
	}
	id := filepath.ToSlash(path)
	return chunk.Document{
		ID:   id,
		Text: strings.TrimSpace(text),
		Metadata: map[string]any{
			"source_path":  id,
			"content_type": detected.String(),
			"bytes":        info.Size(),
		},
	}, nil
}

// ExpandGlobs resolves doublestar patterns (plain paths pass through)
// into a de-duplicated file list, preserving pattern order. A pattern
// matching nothing is an error.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		matches, err := doublestar.FilepathGlob(trimmed)
		if err != nil {
			return nil, fmt.Errorf("loader: glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("loader: glob %q matched no files", pattern)
		}
		for _, match := range matches {
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = struct{}{}
			out = append(out, match)
		}
	}
	return out, nil
}

// isTextual walks the detected type's ancestry; everything rooted in
// text/plain (markdown, source code, json, csv, ...) is readable text.
func isTextual(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func readTextFile(path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("loader: read %q: %w", path, err)
	}
	text, err := decodeText(data, contentType)
	if err != nil {
		return "", fmt.Errorf("loader: decode %q: %w", path, err)
	}
	return text, nil
}

func decodeText(data []byte, contentType string) (string, error) {
	if utf8.Valid(data) {
		return normalizeNewlines(string(data)), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, contentType)
	reader := transform.NewReader(bytes.NewReader(data), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", name, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("transcoded result from %s is not valid utf-8", name)
	}
	return normalizeNewlines(string(decoded)), nil
}

func extractPDFText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("loader: open pdf %q: %w", path, err)
	}
	defer file.Close()
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("loader: extract pdf text from %q: %w", path, err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, content); err != nil {
		return "", fmt.Errorf("loader: read pdf text from %q: %w", path, err)
	}
	return normalizeNewlines(b.String()), nil
}

func normalizeNewlines(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}
