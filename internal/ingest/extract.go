package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"studycards-backend/internal/apperr"
	"studycards-backend/models"
)

// ExtractText turns raw source bytes into plain text according to the
// declared media type. The result still needs whitespace normalization
// before chunking.
func ExtractText(data []byte, mediaType string) (string, error) {
	switch mediaType {
	case models.MediaTypeText, models.MediaTypeMarkdown:
		return extractPlain(data), nil
	case models.MediaTypeHTML:
		return extractHTML(data)
	case models.MediaTypePDF:
		return extractPDF(data)
	case models.MediaTypeDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: unsupported media type %q", apperr.ErrValidation, mediaType)
	}
}

// extractPlain drops invalid UTF-8 sequences and NUL bytes so downstream
// storage never sees broken encodings.
func extractPlain(data []byte) string {
	if utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		return string(data)
	}
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError && r != 0 {
			b.WriteRune(r)
		}
		data = data[size:]
	}
	return b.String()
}

// extractHTML strips script and style elements and returns the visible text.
func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", apperr.ErrValidation, err)
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text(), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: parse pdf: %v", apperr.ErrValidation, err)
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages rather than failing the whole document.
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: pdf contains no extractable text", apperr.ErrValidation)
	}
	return b.String(), nil
}

var (
	docxTagRe  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	docxParaRe = regexp.MustCompile(`</w:p>`)
)

// extractDOCX pulls text runs straight out of word/document.xml. Converter
// libraries stumble over real-world documents (tracked changes, nested
// tables), so we read the OOXML ourselves.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: parse docx: %v", apperr.ErrValidation, err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: parse docx: %v", apperr.ErrValidation, err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: parse docx: %v", apperr.ErrValidation, err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: docx is missing word/document.xml", apperr.ErrValidation)
	}

	// Paragraph boundaries become newlines so sentence structure survives.
	withBreaks := docxParaRe.ReplaceAll(docXML, []byte("\n"))
	var b strings.Builder
	for _, m := range docxTagRe.FindAllSubmatch(withBreaks, -1) {
		b.Write(m[1])
		b.WriteByte(' ')
	}
	text := unescapeXML(b.String())
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: docx contains no extractable text", apperr.ErrValidation)
	}
	return text, nil
}

var xmlReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func unescapeXML(s string) string {
	return xmlReplacer.Replace(s)
}
