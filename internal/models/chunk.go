package models

import "fmt"

// Chunk is a bounded slice of a document's extracted text.
// PageNumber is 1-based; 0 means the source format has no pages.
type Chunk struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	PageNumber  int    `json:"page_number"`
	StartOffset int    `json:"start_offset"` // in runes, within the page text
	ChunkID     int    `json:"chunk_id"`
}

// PageLabel renders the page for citations.
func (c Chunk) PageLabel() string {
	if c.PageNumber <= 0 {
		return "Page N/A"
	}
	return fmt.Sprintf("Page %d", c.PageNumber)
}

// Record pairs a chunk with its embedding. Seq is the insertion order inside a store.
type Record struct {
	Chunk     Chunk
	Embedding []float32
	Seq       int
}

// Match is a retrieved chunk with its cosine distance to the query.
type Match struct {
	Chunk    Chunk
	Distance float32
	Seq      int
}

type Answer struct {
	Query            string  `json:"query"`
	Text             string  `json:"text"`
	SupportingChunks []Chunk `json:"supporting_chunks"`
}
