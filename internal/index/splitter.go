package index

import (
	"strings"

	"github.com/vidsage/vidsage/internal/model"
)

// Split cuts text into overlapping chunks of roughly chunkSize characters,
// preferring to break on a newline in the back half of the window so
// utterances stay whole.
func Split(text string, chunkSize, overlap int) []model.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	var chunks []model.Chunk
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			end = len(text)
		} else if cut := strings.LastIndexByte(text[start:end], '\n'); cut > chunkSize/2 {
			end = start + cut
		}
		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, model.Chunk{ChunkID: len(chunks), Content: content})
		}
		if end >= len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
