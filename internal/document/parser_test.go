package document

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/multimodal-rag/internal/models"
)

func createTestPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetFont("Arial", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.MultiCell(0, 10, text, "", "", false)
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

type fakeExtractor struct {
	pages []ParsedPage
	err   error
}

func (f *fakeExtractor) ExtractPages(_ context.Context, _ []byte, _ string) ([]ParsedPage, error) {
	return f.pages, f.err
}

func TestPlainTextParser(t *testing.T) {
	parser := NewPlainTextParser()

	t.Run("invalid utf8 dropped", func(t *testing.T) {
		docs, err := parser.Parse(context.Background(), []byte("hello\xffworld\n\n\n\nsecond"), "My Notes.TXT")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "helloworld\n\nsecond", docs[0].Content)
		assert.Equal(t, "my_notes.txt", docs[0].Metadata.Source)
		assert.Equal(t, 1, docs[0].Metadata.Page)
		assert.Equal(t, "My Notes.TXT", docs[0].Metadata.Get(MetaOriginalFilename))
	})

	t.Run("empty file", func(t *testing.T) {
		docs, err := parser.Parse(context.Background(), []byte("  \n"), "empty.txt")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestMarkdownParser(t *testing.T) {
	content := "Title\n=====\n\nThis is **markdown** text.\n\n- Item 1\n- Item 2\n\n## Section\n\nBody."
	docs, err := NewMarkdownParser().Parse(context.Background(), []byte(content), "notes.md")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	text := docs[0].Content
	assert.Contains(t, text, "# Title")
	assert.Contains(t, text, "This is markdown text.")
	assert.Contains(t, text, "- Item 1")
	assert.Contains(t, text, "## Section")
	assert.Equal(t, "notes.md", docs[0].Metadata.Source)
}

func TestPDFParser(t *testing.T) {
	data := createTestPDF(t, "Hello PDF World", "Second page text")

	docs, err := NewPDFParser().Parse(context.Background(), data, "Sample Report.pdf")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Contains(t, docs[0].Content, "Hello PDF World")
	assert.Equal(t, 1, docs[0].Metadata.Page)
	assert.Contains(t, docs[1].Content, "Second page text")
	assert.Equal(t, 2, docs[1].Metadata.Page)
	assert.Equal(t, "sample_report.pdf", docs[1].Metadata.Source)
}

func TestExtractStreamText(t *testing.T) {
	stream := "BT /F1 12 Tf 72 712 Td (Hello \\(World\\)) Tj ET\nBT [(Split) -250 (Text)] TJ ET"
	text := extractStreamText(stream)
	assert.Contains(t, text, "Hello (World)")
	assert.Contains(t, text, "SplitText")
}

func TestRouter(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported type", func(t *testing.T) {
		_, err := NewRouter(nil).Parse(ctx, []byte("x"), "report.docx")
		require.Error(t, err)
		assert.True(t, models.IsStage(err, models.StageInput))
		assert.True(t, errors.Is(err, models.ErrUnsupportedFileType))
	})

	t.Run("image without layout parser", func(t *testing.T) {
		_, err := NewRouter(nil).Parse(ctx, []byte("x"), "scan.png")
		require.Error(t, err)
		assert.True(t, models.IsStage(err, models.StageParse))
		assert.True(t, errors.Is(err, ErrNoLayoutParser))
	})

	t.Run("uppercase extension", func(t *testing.T) {
		docs, err := NewRouter(nil).Parse(ctx, []byte("plain"), "README.TXT")
		require.NoError(t, err)
		require.Len(t, docs, 1)
	})

	t.Run("layout parser pages", func(t *testing.T) {
		extractor := &fakeExtractor{pages: []ParsedPage{
			{Text: "   "},
			{
				Text:   "##Chart page",
				Tables: []string{"Year    GDP\n2023    7.2%"},
				Images: []ParsedImage{{ID: "img-1", Caption: "GDP chart", OCR: "7.2"}},
			},
		}}
		router := NewRouter(NewLayoutParser(extractor))
		assert.True(t, router.HasLayoutParser())

		docs, err := router.Parse(ctx, []byte("img"), "Scan 1.PNG")
		require.NoError(t, err)
		require.Len(t, docs, 1)

		doc := docs[0]
		assert.Equal(t, 2, doc.Metadata.Page)
		assert.Equal(t, "scan_1.png", doc.Metadata.Source)
		assert.Contains(t, doc.Content, "## Chart page")
		assert.Contains(t, doc.Content, "| Year | GDP |")
		assert.Contains(t, doc.Content, "**Caption:** GDP chart")
	})

	t.Run("layout failure becomes parse error", func(t *testing.T) {
		router := NewRouter(NewLayoutParser(&fakeExtractor{err: errors.New("service down")}))
		_, err := router.Parse(ctx, []byte("%PDF"), "doc.pdf")
		require.Error(t, err)
		assert.True(t, models.IsStage(err, models.StageParse))
	})
}
