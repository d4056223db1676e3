/*
Package search implements semantic retrieval over stored embeddings.

It provides brute-force cosine ranking over one embedding partition, an
embedding store facade with an in-memory per-kind cache, an indexer that
embeds text through an embedder.Embedder, and hybrid fusion of catalog
keyword hits with semantic hits.
*/
package search

// Source kinds used for embedding partitions.
const (
	SourceComponent   = "component"
	SourcePrompt      = "prompt"
	SourceDescription = "description"
)

// DefaultTopK is used when a search asks for no specific result count.
const DefaultTopK = 5

// Match is one semantic search hit.
type Match struct {
	SourceID   string  `json:"source_id"`
	SourceType string  `json:"source_type"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// Document is a piece of text to embed and store.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
