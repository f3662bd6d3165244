package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"document-chat/internal/config"
	"document-chat/internal/models"
)

func testConfig(size, overlap int) *config.Config {
	return &config.Config{RAG: config.RAGConfig{ChunkSize: size, ChunkOverlap: overlap}}
}

func longText(paragraphs int) string {
	var b strings.Builder
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "Paragraph %d talks about topic %d. It has a few sentences of filler text so that the splitter needs to cut it into several windows.\n\n", i, i*7)
	}
	return b.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest(t *testing.T) {
	t.Run("Missing file is NotFound", func(t *testing.T) {
		chunks, err := Ingest(filepath.Join(t.TempDir(), "nope.pdf"), nil)
		require.ErrorIs(t, err, models.ErrNotFound)
		assert.Nil(t, chunks)
	})

	t.Run("Unsupported extension is ParseError", func(t *testing.T) {
		path := writeFile(t, "image.png", "not really a png")
		_, err := Ingest(path, nil)
		require.ErrorIs(t, err, models.ErrParse)
	})

	t.Run("Corrupt pdf is ParseError", func(t *testing.T) {
		path := writeFile(t, "broken.pdf", "%PDF-1.4 garbage without xref")
		_, err := Ingest(path, nil)
		require.ErrorIs(t, err, models.ErrParse)
	})

	t.Run("Empty text yields no chunks", func(t *testing.T) {
		path := writeFile(t, "empty.txt", "   \n\n ")
		chunks, err := Ingest(path, nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Short text is a single unpaged chunk", func(t *testing.T) {
		path := writeFile(t, "note.txt", "Hello world.")
		chunks, err := Ingest(path, nil)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "Hello world.", chunks[0].Content)
		assert.Equal(t, 0, chunks[0].PageNumber)
		assert.Equal(t, "Page N/A", chunks[0].PageLabel())
		assert.Equal(t, 0, chunks[0].StartOffset)
		assert.Equal(t, 1, chunks[0].ChunkID)
		assert.Equal(t, "chunk-000001", chunks[0].ID)
	})
}

func TestChunkWindows(t *testing.T) {
	const size, overlap = 200, 40
	content := longText(12)
	path := writeFile(t, "long.txt", content)

	chunks, err := Ingest(path, testConfig(size, overlap))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 5)

	t.Run("Every window is within the size limit", func(t *testing.T) {
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), size)
		}
	})

	t.Run("Offsets point at the chunk text", func(t *testing.T) {
		assertOffsets(t, content, chunks)
	})

	t.Run("Offsets and ids increase", func(t *testing.T) {
		for i := 1; i < len(chunks); i++ {
			assert.Greater(t, chunks[i].StartOffset, chunks[i-1].StartOffset)
			assert.Equal(t, chunks[i-1].ChunkID+1, chunks[i].ChunkID)
		}
	})

	t.Run("Reassembled chunks reconstruct the text", func(t *testing.T) {
		assert.Equal(t, strings.Fields(content), strings.Fields(Reassemble(chunks)))
	})
}

// assertOffsets checks that every chunk is the run of characters its start
// offset points at.
func assertOffsets(t *testing.T, content string, chunks []models.Chunk) {
	t.Helper()
	runes := []rune(content)
	for _, c := range chunks {
		n := utf8.RuneCountInString(c.Content)
		require.LessOrEqual(t, c.StartOffset+n, len(runes), c.ID)
		assert.Equal(t, c.Content, string(runes[c.StartOffset:c.StartOffset+n]), c.ID)
	}
}

func chunkPage(t *testing.T, content string, size, overlap int) []models.Chunk {
	t.Helper()
	chunks, err := New(testConfig(size, overlap)).getChunks(content, 1, 0)
	require.NoError(t, err)
	return chunks
}

func TestChunkWindowsIrregularText(t *testing.T) {
	repeat := func(s string, n int) string { return strings.Repeat(s, n) }
	tests := []struct {
		name          string
		content       string
		size, overlap int
	}{
		{
			name:    "Triple newlines",
			content: repeat("alpha beta gamma delta epsilon\n\n\n", 20),
			size:    60,
			overlap: 15,
		},
		{
			name:    "Tabs",
			content: repeat("name\tprice\tquantity\tnotes about the row\t", 25),
			size:    50,
			overlap: 10,
		},
		{
			name:    "Repeated spaces",
			content: repeat("word  another      spaced     out   text ", 30),
			size:    40,
			overlap: 8,
		},
		{
			name:    "Multibyte runes",
			content: repeat("Größe über naïve façade 東京 日本語のテキスト ", 30),
			size:    45,
			overlap: 9,
		},
		{
			name:    "Long unbroken run",
			content: "start " + repeat("ü", 500) + " end",
			size:    60,
			overlap: 15,
		},
		{
			name:    "Mixed whitespace run",
			content: "delta\n\n\nalpha  gammaüx\tbetagammabeta  betagammabeta      delta",
			size:    60,
			overlap: 15,
		},
		{
			name:    "No overlap",
			content: repeat("delta\n\n\nalpha  gamma\tbeta ", 40),
			size:    30,
			overlap: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkPage(t, tt.content, tt.size, tt.overlap)
			require.NotEmpty(t, chunks)
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), tt.size, c.Content)
			}
			assertOffsets(t, tt.content, chunks)
			assert.Equal(t, strings.Fields(tt.content), strings.Fields(Reassemble(chunks)))
		})
	}
}

func TestChunkWindowsRandomWhitespace(t *testing.T) {
	const size, overlap = 60, 15
	words := []string{"alpha", "beta", "gamma", "delta", "betagammabeta", "gammaüx", "día"}
	gaps := []string{" ", "  ", "      ", "\t", "\n", "\n\n", "\n\n\n"}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 300; i++ {
		var b strings.Builder
		for n := 10 + rng.Intn(60); n > 0; n-- {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteString(gaps[rng.Intn(len(gaps))])
		}
		content := b.String()

		chunks := chunkPage(t, content, size, overlap)
		for _, c := range chunks {
			require.LessOrEqual(t, utf8.RuneCountInString(c.Content), size, "input %d: %q", i, c.Content)
		}
		assertOffsets(t, content, chunks)
		require.Equal(t, strings.Fields(content), strings.Fields(Reassemble(chunks)), "input %d", i)
	}
}

func TestStartOffsetsCountCharacters(t *testing.T) {
	content := strings.Repeat("café crème brûlée déjà vu. ", 20)
	chunks := chunkPage(t, content, 100, 20)
	require.Greater(t, len(chunks), 3)

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 81, chunks[1].StartOffset)
	assert.Equal(t, 162, chunks[2].StartOffset)
	assertOffsets(t, content, chunks)
	assert.Equal(t, strings.Fields(content), strings.Fields(Reassemble(chunks)))
}

func TestStartOffsetsWarnWhenTextIsMissing(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })

	offsets := startOffsets("alpha beta gamma", []string{"alpha beta", "not in the page"}, 2, 3)
	assert.Equal(t, 0, offsets[0])
	assert.Equal(t, 8, offsets[1])
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"page":3`)
	assert.Contains(t, buf.String(), "Chunk text not found in page")
}

func TestReassembleOverlap(t *testing.T) {
	chunks := []models.Chunk{
		{Content: "lo world", StartOffset: 3, PageNumber: 1},
		{Content: "hello", StartOffset: 0, PageNumber: 1},
		{Content: "again", StartOffset: 12, PageNumber: 1},
	}
	assert.Equal(t, "hello world again", Reassemble(chunks))
}

func TestMarkdown(t *testing.T) {
	path := writeFile(t, "readme.md", "# Title\n\nSome **bold** text and `code`.\n\n- item one\n- item two\n")
	chunks, err := Ingest(path, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	got := chunks[0].Content
	assert.Contains(t, got, "Title")
	assert.Contains(t, got, "Some bold text and code.")
	assert.Contains(t, got, "item two")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "#")
}

func TestPPTX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	slides := map[string]string{
		"ppt/slides/slide2.xml":            `<p:sld xmlns:p="p" xmlns:a="a"><a:p><a:r><a:t>Second slide</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/slide1.xml":            `<p:sld xmlns:p="p" xmlns:a="a"><a:p><a:r><a:t>First slide</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	}
	for name, body := range slides {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	chunks, err := Ingest(path, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First slide", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, "Second slide", chunks[1].Content)
	assert.Equal(t, 2, chunks[1].PageNumber)
}

func TestSpreadsheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.xlsx")
	xf := excelize.NewFile()
	require.NoError(t, xf.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, xf.SetCellValue("Sheet1", "B1", "price"))
	require.NoError(t, xf.SetCellValue("Sheet1", "A2", "apple"))
	require.NoError(t, xf.SetCellValue("Sheet1", "B2", 3))
	require.NoError(t, xf.SaveAs(path))
	require.NoError(t, xf.Close())

	chunks, err := Ingest(path, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Contains(t, chunks[0].Content, "## Sheet: Sheet1")
	assert.Contains(t, chunks[0].Content, "apple\t3")
}

func TestSlideNumber(t *testing.T) {
	n, ok := slideNumber("ppt/slides/slide12.xml")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = slideNumber("ppt/slides/_rels/slide1.xml.rels")
	assert.False(t, ok)
	_, ok = slideNumber("ppt/slideLayouts/slideLayout1.xml")
	assert.False(t, ok)
}
