package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// CorpusProvider embeds text without an external model service. Tokens
// are feature-hashed into a fixed-dimension vector and weighted by
// inverse document frequency learned from the ingested corpus, so the
// space improves as memories accumulate. Deterministic, which also makes
// it the embedder of choice in tests.
type CorpusProvider struct {
	mu       sync.RWMutex
	dim      int
	docCount int
	docFreq  map[string]int
}

// NewCorpusProvider creates a corpus-fitted embedder. A dimension of 0
// defaults to 256.
func NewCorpusProvider(dimension int) *CorpusProvider {
	if dimension <= 0 {
		dimension = 256
	}
	return &CorpusProvider{
		dim:     dimension,
		docFreq: make(map[string]int),
	}
}

// Embed maps each text to a normalized tf-idf feature-hash vector.
// The corpus is not modified.
func (p *CorpusProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.embedOne(text)
	}
	return out, nil
}

func (p *CorpusProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dim)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	for tok, freq := range tf {
		weight := float64(freq) * p.idf(tok)
		vec[p.slot(tok)] += float32(weight)
	}
	normalize(vec)
	return vec
}

// idf follows the smoothed formulation ln((1+N)/(1+df)) + 1, never zero
// so unseen tokens still contribute.
func (p *CorpusProvider) idf(token string) float64 {
	df := p.docFreq[token]
	return math.Log(float64(1+p.docCount)/float64(1+df)) + 1
}

func (p *CorpusProvider) slot(token string) int {
	h := fnv.New32a()
	h.Write([]byte(token))
	return int(h.Sum32() % uint32(p.dim))
}

// UpdateCorpus folds new texts into the document frequency table.
func (p *CorpusProvider) UpdateCorpus(_ context.Context, texts []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, text := range texts {
		tokens := tokenize(text)
		if len(tokens) == 0 {
			continue
		}
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				p.docFreq[tok]++
			}
		}
		p.docCount++
	}
	return nil
}

// Dimension returns the fixed vector dimension.
func (p *CorpusProvider) Dimension() int { return p.dim }

// tokenize splits text into lowercase word tokens, skipping single chars.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '_' || r == '-' ||
			r > 127) // keep unicode chars
	})
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(f)
		if len(w) > 1 {
			result = append(result, w)
		}
	}
	return result
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
