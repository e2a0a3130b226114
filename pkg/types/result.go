package types

// Result is a single learning matched by a search
type Result struct {
	ID       string   `json:"id"`
	Document string   `json:"document"`
	Metadata Metadata `json:"metadata"`

	// Distance is the adjusted distance in [0, 1], lower is better
	Distance float64 `json:"distance"`

	// Rerank details
	OriginalDistance float64 `json:"original_distance"`
	KeywordOverlap   float64 `json:"keyword_overlap"`
	FTSMatch         bool    `json:"fts_match"`
	MatchedKeyword   string  `json:"matched_keyword,omitempty"`
}

// Validate checks if the result is well formed
func (r *Result) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.Distance < 0 || r.Distance > 1 {
		return ErrInvalidDistance
	}
	return nil
}
