package parser

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"document-chat/internal/models"
)

// getChunks splits one page into overlapping windows. seqStart is the number of
// chunks already produced for the document, so ChunkIDs stay unique across pages.
func (p *ParserConfig) getChunks(content string, pageNumber, seqStart int) ([]models.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	size, overlap := p.Config.RAG.ChunkSize, p.Config.RAG.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	parts, err := splitter.SplitText(content)
	if err != nil {
		return nil, err
	}

	pieces := enforceSize(parts, startOffsets(content, parts, overlap, pageNumber), size, overlap)
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, pc := range pieces {
		chunkID := seqStart + len(chunks) + 1
		chunks = append(chunks, models.Chunk{
			ID:          fmt.Sprintf("chunk-%06d", chunkID),
			Content:     pc.text,
			PageNumber:  pageNumber,
			StartOffset: utf8.RuneCountInString(content[:min(pc.offset, len(content))]),
			ChunkID:     chunkID,
		})
	}
	return chunks, nil
}

// piece is a window of page text and its byte offset in the page.
type piece struct {
	text   string
	offset int
}

// enforceSize cuts every part longer than size runes into windows of size
// runes that advance by size-overlap. The splitter lets parts grow past its
// limit around runs of whitespace. Pieces are ordered by offset and
// whitespace-only pieces are dropped.
func enforceSize(parts []string, offsets []int, size, overlap int) []piece {
	pieces := make([]piece, 0, len(parts))
	add := func(text string, offset int) {
		trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
		offset += len(text) - len(trimmed)
		trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
		if trimmed != "" {
			pieces = append(pieces, piece{text: trimmed, offset: offset})
		}
	}

	step := max(size-overlap, 1)
	for i, part := range parts {
		if utf8.RuneCountInString(part) <= size {
			add(part, offsets[i])
			continue
		}
		runes := []rune(part)
		byteAt := offsets[i]
		for start := 0; ; start += step {
			end := min(start+size, len(runes))
			add(string(runes[start:end]), byteAt)
			if end == len(runes) {
				break
			}
			byteAt += len(string(runes[start : start+step]))
		}
	}
	sort.SliceStable(pieces, func(i, j int) bool { return pieces[i].offset < pieces[j].offset })
	return pieces
}

// startOffsets locates each part inside content and returns byte offsets. The
// search for a part starts where the previous part ended minus the overlap, so
// repeated text resolves to the occurrence the splitter actually produced.
func startOffsets(content string, parts []string, overlap, pageNumber int) []int {
	offsets := make([]int, len(parts))
	index, prev := 0, ""
	for i, part := range parts {
		from := 0
		if i > 0 {
			from = index + len(prev) - overlapBytes(prev, overlap)
			from = max(from, index+1)
			from = min(max(from, 0), len(content))
		}
		found := strings.Index(content[from:], part)
		switch {
		case found >= 0:
			index = from + found
		case strings.Contains(content, part):
			index = strings.Index(content, part)
		default:
			log.Warn().
				Int("page", pageNumber).
				Int("part", i).
				Int("offset", from).
				Msg("Chunk text not found in page, start offset is approximate")
			index = from
		}
		offsets[i] = index
		prev = part
	}
	return offsets
}

// overlapBytes is the byte length of the last n runes of s.
func overlapBytes(s string, n int) int {
	if n <= 0 {
		return 0
	}
	i := len(s)
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return len(s) - i
}

// Reassemble rebuilds page text from its chunks, dropping the overlapped
// prefix of each chunk. Offsets are counted in runes. Gaps left by whitespace
// the splitter trimmed are filled with a single space.
func Reassemble(chunks []models.Chunk) string {
	sorted := make([]models.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PageNumber != sorted[j].PageNumber {
			return sorted[i].PageNumber < sorted[j].PageNumber
		}
		return sorted[i].StartOffset < sorted[j].StartOffset
	})

	var b strings.Builder
	end, page := 0, -1
	for _, c := range sorted {
		if c.PageNumber != page {
			if page != -1 {
				b.WriteString("\n")
			}
			page, end = c.PageNumber, 0
		}
		runes := []rune(c.Content)
		chunkEnd := c.StartOffset + len(runes)
		switch {
		case chunkEnd <= end:
			continue
		case c.StartOffset >= end:
			if end > 0 && c.StartOffset > end {
				b.WriteString(" ")
			}
			b.WriteString(c.Content)
		default:
			b.WriteString(string(runes[end-c.StartOffset:]))
		}
		end = chunkEnd
	}
	return b.String()
}
