package pipeline

import (
	"github.com/engramdb/engram/helper"
	"github.com/engramdb/engram/model"
)

// ChunkFunc is a function that splits text into chunks
type ChunkFunc func(text string) ([]string, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// Pipeline combines chunking and embedding functions
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder EmbedFunc
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// Embed generates an embedding for text, mapping an empty provider result to
// an embedding failure rather than an all-zero vector.
func (p *Pipeline) Embed(text string) ([]float32, error) {
	if p.Embedder == nil {
		return nil, helper.NewEmbeddingError("embed", errNoEmbedder)
	}

	embedding, err := p.Embedder(text)
	if err != nil {
		return nil, helper.NewEmbeddingError("embed", err)
	}
	if len(embedding) == 0 {
		return nil, helper.NewEmbeddingError("embed", errEmptyEmbedding)
	}

	return embedding, nil
}

// Process splits text into chunks, wraps each chunk as a memory item
// carrying lineage metadata (chunk_index, total_chunks, original_length on
// top of the caller's metadata) and embeds it. The returned items are
// transient; the caller persists them as one batch.
func (p *Pipeline) Process(text string, category string, tags []string, metadata model.Metadata) ([]*model.MemoryItem, error) {
	if p.Chunker == nil {
		return nil, helper.NewError("process", errNoChunker)
	}

	chunks, err := p.Chunker(text)
	if err != nil {
		return nil, helper.NewError("chunk text", err)
	}

	items := make([]*model.MemoryItem, 0, len(chunks))
	for i, chunk := range chunks {
		embedding, err := p.Embed(chunk)
		if err != nil {
			return nil, err
		}

		item := model.NewMemoryItem(chunk)
		item.Category = category
		item.Tags = tags
		item.Embedding = embedding
		item.Metadata = metadata.Merged(model.Metadata{
			"chunk_index":     i,
			"total_chunks":    len(chunks),
			"original_length": len(text),
		})

		items = append(items, item)
	}

	return items, nil
}
