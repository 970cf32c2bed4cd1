package model

// Example is one (question, query) pair of the few-shot catalogue. Entries are
// immutable once the catalogue is loaded; the embedding may be filled at load
// time when the source file does not carry a precomputed vector.
type Example struct {
	Question  string    `yaml:"question"`
	Query     string    `yaml:"query"`
	Embedding []float32 `yaml:"embedding,omitempty"`
}

// ScoredExample is an Example ranked by cosine similarity to a user question.
type ScoredExample struct {
	Example *Example
	Score   float64
}
