package convert

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p>
      <w:r><w:t>Second paragraph, </w:t></w:r>
      <w:r><w:rPr><w:b/></w:rPr><w:t>split across runs.</w:t></w:r>
    </w:p>
    <w:p/>
    <w:p><w:r><w:t>Fourth paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeTestDocx(t *testing.T, dir string, body string) string {
	t.Helper()

	path := filepath.Join(dir, "document.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestExtractParagraphs(t *testing.T) {
	dir := t.TempDir()
	src := writeTestDocx(t, dir, testDocumentXML)

	paragraphs, err := extractParagraphs(src)

	require.NoError(t, err)
	require.Len(t, paragraphs, 4)
	assert.Equal(t, "First paragraph.", paragraphs[0])
	assert.Equal(t, "Second paragraph, split across runs.", paragraphs[1])
	assert.Equal(t, "", paragraphs[2])
	assert.Equal(t, "Fourth paragraph.", paragraphs[3])
}

func TestExtractParagraphs_MissingBody(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	paragraphs, err := extractParagraphs(path)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
	assert.Nil(t, paragraphs)
}

func TestExtractParagraphs_LegacyBinaryDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.doc")
	require.NoError(t, os.WriteFile(path, []byte{0xD0, 0xCF, 0x11, 0xE0}, 0o644))

	_, err := extractParagraphs(path)
	assert.Error(t, err)
}

func TestReadParagraphs_OrderPreserved(t *testing.T) {
	body := `<document>` +
		`<p><r><t>alpha</t></r></p>` +
		`<p><r><t>beta</t></r></p>` +
		`<p><r><t>gamma</t></r></p>` +
		`</document>`

	paragraphs, err := readParagraphs(strings.NewReader(body))

	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, paragraphs)
}

func TestFlowToPDF(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "flowed.pdf")

	paragraphs := []string{"One paragraph of text.", "", "Another paragraph."}
	require.NoError(t, flowToPDF(paragraphs, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestFlowToPDF_Cp1252Text(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "accented.pdf")

	// Accented Latin text is within cp1252 and must flow without error.
	paragraphs := []string{"Café déjà vu — naïve façade."}
	require.NoError(t, flowToPDF(paragraphs, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}
