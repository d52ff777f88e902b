package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycards-backend/internal/apperr"
	"studycards-backend/models"
)

func TestExtractTextPlain(t *testing.T) {
	out, err := ExtractText([]byte("plain body"), models.MediaTypeText)
	require.NoError(t, err)
	assert.Equal(t, "plain body", out)
}

func TestExtractTextPlainStripsInvalidUTF8(t *testing.T) {
	out, err := ExtractText([]byte{'o', 'k', 0xff, 0x00, '!'}, models.MediaTypeText)
	require.NoError(t, err)
	assert.Equal(t, "ok!", out)
}

func TestExtractTextHTML(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head>` +
		`<body><script>alert(1)</script><p>visible content</p></body></html>`
	out, err := ExtractText([]byte(html), models.MediaTypeHTML)
	require.NoError(t, err)
	assert.Contains(t, out, "visible content")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "color:red")
}

func TestExtractTextDOCX(t *testing.T) {
	docXML := `<?xml version="1.0"?><w:document><w:body>` +
		`<w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">second &amp; third</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(docXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := ExtractText(buf.Bytes(), models.MediaTypeDOCX)
	require.NoError(t, err)
	assert.Contains(t, out, "First paragraph")
	assert.Contains(t, out, "second & third")
}

func TestExtractTextDOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ExtractText(buf.Bytes(), models.MediaTypeDOCX)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestExtractTextCorruptPDF(t *testing.T) {
	_, err := ExtractText([]byte("not a pdf"), models.MediaTypePDF)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestExtractTextUnsupportedType(t *testing.T) {
	_, err := ExtractText([]byte("data"), "image/png")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
