package pipeline

import (
	"errors"
	"fmt"
)

var (
	errNoChunker      = errors.New("no chunker configured")
	errNoEmbedder     = errors.New("no embedder configured")
	errEmptyEmbedding = errors.New("provider returned no embedding")
)

// FixedChunker creates a chunker that splits text into fixed-width,
// non-overlapping slices. Chunk i is text[i*chunkSize : (i+1)*chunkSize];
// the final chunk may be shorter. The split is byte-exact so that
// concatenating the chunks reproduces the input, with no sentence or word
// boundary awareness.
func FixedChunker(chunkSize int) ChunkFunc {
	return func(text string) ([]string, error) {
		if chunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
		}

		if len(text) == 0 {
			return []string{}, nil
		}

		chunks := make([]string, 0, (len(text)+chunkSize-1)/chunkSize)
		for start := 0; start < len(text); start += chunkSize {
			end := start + chunkSize
			if end > len(text) {
				end = len(text)
			}
			chunks = append(chunks, text[start:end])
		}

		return chunks, nil
	}
}
