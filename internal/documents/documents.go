// Package documents loads plain text out of the files a comparison run is given.
// Supported formats are .txt and .docx; everything else is reported as unsupported.
package documents

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/formbricks/similarity/pkg/similarity"
)

// ErrUnsupportedFormat is returned by Read for file types it cannot extract text from.
var ErrUnsupportedFormat = errors.New("documents: unsupported file type")

const docxBodyPart = "word/document.xml"

// Read returns the trimmed text content of the file at path.
func Read(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}

		return strings.TrimSpace(string(b)), nil
	case ".docx":
		text, err := readDOCX(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}

		return text, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// ReadDir loads every supported file below dir, in lexical path order. Documents are named by
// their path relative to dir. Unsupported files are logged and skipped.
func ReadDir(dir string, logger *slog.Logger) ([]similarity.Document, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var docs []similarity.Document

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		name, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}

		text, err := Read(path)
		if errors.Is(err, ErrUnsupportedFormat) {
			logger.Warn("skipping unsupported file", "file", name)

			return nil
		}

		if err != nil {
			return err
		}

		docs = append(docs, similarity.Document{Name: filepath.ToSlash(name), Text: text})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	return docs, nil
}

// readDOCX extracts the raw text of a Word document: runs are concatenated, tabs and breaks kept,
// paragraphs separated by a blank line.
func readDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer func() {
		if err := zr.Close(); err != nil {
			slog.Error("Failed to close docx archive", "error", err)
		}
	}()

	part, err := zr.Open(docxBodyPart)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxBodyPart, err)
	}
	defer part.Close()

	return extractDOCXText(part)
}

func extractDOCXText(r io.Reader) (string, error) {
	var (
		sb     strings.Builder
		inText bool
	)

	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
