package convert

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
)

// WordConverter renders a word-processing document by concatenating its
// paragraph text in order into a flowed PDF intermediate, then reusing the
// PDF converter's page splitting. Page count is decided by layout, not by
// the source paragraph count.
//
// Legacy binary .doc files are not zip archives and fail to open, surfacing
// as a converter error.
type WordConverter struct {
	PDF *PDFConverter
}

var _ Converter = (*WordConverter)(nil)

// Convert extracts the document's paragraphs, flows them into a PDF under
// outDir, and delegates page rendering to the PDF converter.
func (c *WordConverter) Convert(ctx context.Context, srcPath, outDir string) ([]Page, error) {
	paragraphs, err := extractParagraphs(srcPath)
	if err != nil {
		return nil, err
	}

	intermediate := filepath.Join(outDir, "document.pdf")
	if err := flowToPDF(paragraphs, intermediate); err != nil {
		return nil, fmt.Errorf("render document to pdf: %w", err)
	}

	return c.PDF.Convert(ctx, intermediate, outDir)
}

// extractParagraphs pulls the ordered paragraph text out of a DOCX archive.
// WordprocessingML nests runs of text (<w:t>) inside paragraphs (<w:p>);
// everything else (styling, tables of properties) is skipped.
func extractParagraphs(srcPath string) ([]string, error) {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open document archive: %w", err)
	}
	defer zr.Close()

	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document body: %w", err)
			}
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s has no word/document.xml body", filepath.Base(srcPath))
	}
	defer doc.Close()

	return readParagraphs(doc)
}

func readParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var paragraphs []string
	var current strings.Builder
	inParagraph := false
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				inText = inParagraph
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inParagraph {
					paragraphs = append(paragraphs, current.String())
				}
				inParagraph = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}

// flowToPDF lays the paragraphs out as a single flowed A4 document.
//
// The core Helvetica font is cp1252-only: UTF-8 input is translated to that
// codepage, so accented Latin text renders correctly but scripts outside
// cp1252 (CJK, Cyrillic, Arabic, ...) degrade to replacement characters.
// Full-script output needs an embedded Unicode font, which this converter
// does not carry.
func flowToPDF(paragraphs []string, outPath string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			pdf.Ln(6)
			continue
		}
		pdf.MultiCell(0, 6, tr(p), "", "L", false)
		pdf.Ln(3)
	}

	return pdf.OutputFileAndClose(outPath)
}
