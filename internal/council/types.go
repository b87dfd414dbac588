// Package council implements the three stage deliberation engine: parallel
// response collection, anonymized peer ranking, and chairman synthesis.
package council

import (
	"github.com/johnayoung/llm-council/internal/provider"
)

// CallResult is the outcome of one dispatched model call. Exactly one of
// Content or Err is meaningful.
type CallResult struct {
	Model   string
	Content string
	Err     *provider.CallError
}

// StageOneEntry is one council member's answer (or failure) to the user
// question. Response is non-nil iff Error is nil.
type StageOneEntry struct {
	Model        string  `json:"model"`
	Response     *string `json:"response"`
	Error        *string `json:"error"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// StageTwoEntry is one council member's ranking of the anonymized answers.
// ParsedRanking may be empty even on success when the response text has no
// recognizable structure.
type StageTwoEntry struct {
	Model         string   `json:"model"`
	Ranking       *string  `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
	Error         *string  `json:"error"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

// AggregateRank is one model's averaged position across all peer rankings
// that named it.
type AggregateRank struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// StageThreeResult is the chairman's synthesized answer.
type StageThreeResult struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// TurnMetadata summarizes a turn for persistence and display.
type TurnMetadata struct {
	LabelToModel      map[string]string `json:"label_to_model"`
	AggregateRankings []AggregateRank   `json:"aggregate_rankings"`
	SearchQuery       string            `json:"search_query,omitempty"`
	SearchContext     string            `json:"search_context,omitempty"`
}

// TurnResult is the complete outcome of one deliberation turn.
type TurnResult struct {
	Stage1   []StageOneEntry  `json:"stage1"`
	Stage2   []StageTwoEntry  `json:"stage2"`
	Stage3   StageThreeResult `json:"stage3"`
	Metadata TurnMetadata     `json:"metadata"`

	// Aborted is set when Stage 1 produced zero successful responses and
	// Stage 2/3 never ran. Not part of the wire format.
	Aborted bool `json:"-"`
	// Title is the generated conversation title, when requested.
	Title string `json:"-"`
}

func stageOneEntry(res CallResult) StageOneEntry {
	if res.Err != nil {
		kind := res.Err.Kind
		return StageOneEntry{
			Model:        res.Model,
			Error:        &kind,
			ErrorMessage: res.Err.Message,
		}
	}
	content := res.Content
	return StageOneEntry{Model: res.Model, Response: &content}
}

func stageTwoEntry(res CallResult) StageTwoEntry {
	if res.Err != nil {
		kind := res.Err.Kind
		return StageTwoEntry{
			Model:         res.Model,
			ParsedRanking: []string{},
			Error:         &kind,
			ErrorMessage:  res.Err.Message,
		}
	}
	text := res.Content
	return StageTwoEntry{
		Model:         res.Model,
		Ranking:       &text,
		ParsedRanking: ParseRanking(text),
	}
}
