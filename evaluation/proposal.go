package evaluation

// Proposal is the immutable input of one evaluation run.
type Proposal struct {
	ID      string  `json:"id"`
	DAOID   string  `json:"dao_id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	// Amount is the requested treasury outflow in the DAO's base denomination.
	Amount float64 `json:"amount"`
	// Mission is the DAO mission statement the proposal is scored against.
	Mission string `json:"mission"`
	// PastProposals holds the bodies of previously submitted proposals, used
	// for duplicate detection.
	PastProposals []string `json:"past_proposals,omitempty"`
}

// Score is the result of one scoring analysis. Scores range 0-100.
type Score struct {
	Score   int      `json:"score"`
	Flags   []string `json:"flags,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// Decision is the final aggregated verdict for a proposal.
type Decision struct {
	Approve    bool    `json:"approve"`
	FinalScore int     `json:"final_score"`
	// Confidence reflects how many contributing analyses completed without a
	// captured failure.
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// TokenUsage represents token consumption recorded per step.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add adds another TokenUsage to this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
