package embedding

import "context"

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// CorpusIndexer is implemented by providers whose vector space is fitted
// to a corpus. Ingestion feeds new memory text through UpdateCorpus;
// query embedding deliberately never does, so ephemeral queries cannot
// pollute the index.
type CorpusIndexer interface {
	UpdateCorpus(ctx context.Context, texts []string) error
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "api", "local", or "corpus"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}
