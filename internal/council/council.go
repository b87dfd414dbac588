package council

import (
	"context"
	"fmt"
	"strings"
	"time"

	"goa.design/clue/log"

	"github.com/johnayoung/llm-council/internal/provider"
)

// AbortMessage is the user-visible notice when every council model fails in
// Stage 1 and the turn cannot proceed.
const AbortMessage = "All models failed to respond in Stage 1, likely due to rate limits or API errors. Please try again or adjust your model selection."

// chairmanFailure substitutes for a failed chairman call; the turn still
// completes.
const chairmanFailure = "Error: Unable to generate final synthesis."

const titleFallback = "New Conversation"

// Config is the immutable per-turn configuration snapshot threaded through
// the engine. It is captured once at the turn boundary; mid-turn settings
// changes do not affect a running turn.
type Config struct {
	CouncilModels    []string
	ChairmanModel    string
	TitleModel       string
	SearchQueryModel string

	Stage2Prompt      string
	Stage3Prompt      string
	TitlePrompt       string
	SearchQueryPrompt string

	QueryTimeout       time.Duration
	TitleTimeout       time.Duration
	SearchQueryTimeout time.Duration

	SearchProvider     string
	SearchMaxResults   int
	FullContentResults int
}

func (c Config) withDefaults() Config {
	if c.Stage2Prompt == "" {
		c.Stage2Prompt = DefaultStage2Prompt
	}
	if c.Stage3Prompt == "" {
		c.Stage3Prompt = DefaultStage3Prompt
	}
	if c.TitlePrompt == "" {
		c.TitlePrompt = DefaultTitlePrompt
	}
	if c.SearchQueryPrompt == "" {
		c.SearchQueryPrompt = DefaultSearchQueryPrompt
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 120 * time.Second
	}
	if c.TitleTimeout == 0 {
		c.TitleTimeout = 30 * time.Second
	}
	if c.SearchQueryTimeout == 0 {
		c.SearchQueryTimeout = 15 * time.Second
	}
	if c.SearchMaxResults == 0 {
		c.SearchMaxResults = 5
	}
	return c
}

// Searcher is the external web search collaborator. It never fails: any
// failure degrades to an explanatory placeholder blob.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int, providerName string, fullContentResults int) string
}

// Engine drives the three deliberation stages for one turn.
type Engine struct {
	cfg      Config
	invoker  *Invoker
	searcher Searcher
}

// New creates an engine from a configuration snapshot. The searcher may be
// nil when web search is never requested.
func New(cfg Config, router *provider.Router, searcher Searcher) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		invoker:  NewInvoker(router),
		searcher: searcher,
	}
}

// Stage1 broadcasts the (possibly search-augmented) question to every
// council model and collects one entry per model, failures included.
func (e *Engine) Stage1(ctx context.Context, question, searchContext string) []StageOneEntry {
	prompt := buildStage1Prompt(question, searchContext)
	results := e.invoker.InvokeAll(ctx, e.cfg.CouncilModels, userMessage(prompt), e.cfg.QueryTimeout)

	entries := make([]StageOneEntry, 0, len(e.cfg.CouncilModels))
	for _, model := range e.cfg.CouncilModels {
		entries = append(entries, stageOneEntry(results[model]))
	}
	return entries
}

// assignLabels builds the anonymized labels ("Response A", ...) over the
// successful Stage 1 entries. The label-to-model mapping is a bijection over
// that subset.
func assignLabels(successful []StageOneEntry) ([]string, map[string]string) {
	labels := make([]string, len(successful))
	labelToModel := make(map[string]string, len(successful))
	for i, entry := range successful {
		label := fmt.Sprintf("Response %c", 'A'+i)
		labels[i] = label
		labelToModel[label] = entry.Model
	}
	return labels, labelToModel
}

func successfulEntries(stage1 []StageOneEntry) []StageOneEntry {
	var ok []StageOneEntry
	for _, entry := range stage1 {
		if entry.Error == nil {
			ok = append(ok, entry)
		}
	}
	return ok
}

// Stage2 anonymizes the successful Stage 1 responses, asks every council
// model to rank them, and parses each ranking. Returns the entries plus the
// label-to-model map.
func (e *Engine) Stage2(ctx context.Context, question string, stage1 []StageOneEntry, searchContext string) ([]StageTwoEntry, map[string]string) {
	successful := successfulEntries(stage1)
	labels, labelToModel := assignLabels(successful)

	prompt := buildStage2Prompt(e.cfg.Stage2Prompt, question, labels, successful, searchContext)
	results := e.invoker.InvokeAll(ctx, e.cfg.CouncilModels, userMessage(prompt), e.cfg.QueryTimeout)

	entries := make([]StageTwoEntry, 0, len(e.cfg.CouncilModels))
	for _, model := range e.cfg.CouncilModels {
		entries = append(entries, stageTwoEntry(results[model]))
	}
	return entries, labelToModel
}

// Stage3 has the chairman synthesize the final answer from the full,
// model-attributed stage outputs. A failed chairman call yields a
// substituted failure notice, never an error.
func (e *Engine) Stage3(ctx context.Context, question string, stage1 []StageOneEntry, stage2 []StageTwoEntry, searchContext string) StageThreeResult {
	prompt := buildStage3Prompt(e.cfg.Stage3Prompt, question, stage1, stage2, searchContext)
	res := e.invoker.InvokeOne(ctx, e.cfg.ChairmanModel, userMessage(prompt), e.cfg.QueryTimeout)

	if res.Err != nil {
		return StageThreeResult{Model: e.cfg.ChairmanModel, Response: chairmanFailure}
	}
	return StageThreeResult{Model: e.cfg.ChairmanModel, Response: res.Content}
}

// GenerateTitle produces a short conversation title from the first user
// message. Always returns something usable.
func (e *Engine) GenerateTitle(ctx context.Context, question string) string {
	prompt := renderPrompt(e.cfg.TitlePrompt, promptData{UserQuery: question}, "Title for: "+question)
	res := e.invoker.InvokeOne(ctx, e.cfg.TitleModel, userMessage(prompt), e.cfg.TitleTimeout)
	if res.Err != nil {
		return titleFallback
	}

	title := strings.Trim(strings.TrimSpace(res.Content), `"'`)
	if title == "" {
		return titleFallback
	}
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	return title
}

// GenerateSearchQuery turns the user's question into optimized search terms,
// falling back to the truncated question itself.
func (e *Engine) GenerateSearchQuery(ctx context.Context, question string) string {
	prompt := renderPrompt(e.cfg.SearchQueryPrompt, promptData{UserQuery: question}, "Search terms for: "+question)
	res := e.invoker.InvokeOne(ctx, e.cfg.SearchQueryModel, userMessage(prompt), e.cfg.SearchQueryTimeout)
	if res.Err != nil {
		return truncate(question, 100)
	}

	query := strings.Trim(strings.TrimSpace(res.Content), `"'`)
	if len(query) < 5 {
		return truncate(question, 100)
	}
	return truncate(query, 100)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func (e *Engine) search(ctx context.Context, question string) (query, blob string) {
	query = e.GenerateSearchQuery(ctx, question)
	blob = e.searcher.Search(ctx, query, e.cfg.SearchMaxResults, e.cfg.SearchProvider, e.cfg.FullContentResults)
	return query, blob
}

// Run executes a full turn without streaming. On total Stage 1 failure the
// result carries only Stage 1 and a synthetic failure notice, with Aborted
// set; Stage 2 and Stage 3 never run.
func (e *Engine) Run(ctx context.Context, question string, useWebSearch bool) *TurnResult {
	var searchQuery, searchContext string
	if useWebSearch && e.searcher != nil {
		searchQuery, searchContext = e.search(ctx, question)
	}

	stage1 := e.Stage1(ctx, question, searchContext)
	if len(successfulEntries(stage1)) == 0 {
		log.Printf(ctx, "turn aborted: no successful stage 1 responses")
		return &TurnResult{
			Stage1:  stage1,
			Stage3:  StageThreeResult{Model: "error", Response: AbortMessage},
			Aborted: true,
		}
	}

	stage2, labelToModel := e.Stage2(ctx, question, stage1, searchContext)
	aggregate := AggregateRankings(stage2, labelToModel)
	stage3 := e.Stage3(ctx, question, stage1, stage2, searchContext)

	return &TurnResult{
		Stage1: stage1,
		Stage2: stage2,
		Stage3: stage3,
		Metadata: TurnMetadata{
			LabelToModel:      labelToModel,
			AggregateRankings: aggregate,
			SearchQuery:       searchQuery,
			SearchContext:     searchContext,
		},
	}
}

// RunStream executes a full turn, replaying progress as ordered events to
// the sink. A sink failure stops emission and returns the error; in-flight
// provider calls still run to completion. When withTitle is set, title
// generation runs concurrently and is awaited only at finalization.
func (e *Engine) RunStream(ctx context.Context, question string, useWebSearch, withTitle bool, sink Sink) (*TurnResult, error) {
	em := &emitter{sink: sink}

	var titleCh chan string
	if withTitle {
		titleCh = make(chan string, 1)
		go func() {
			titleCh <- e.GenerateTitle(ctx, question)
		}()
	}

	var searchQuery, searchContext string
	if useWebSearch && e.searcher != nil {
		if err := em.emit(Event{Type: EventSearchStart, Data: SearchStartData{Provider: e.cfg.SearchProvider}}); err != nil {
			return nil, err
		}
		searchQuery, searchContext = e.search(ctx, question)
		if err := em.emit(Event{Type: EventSearchComplete, Data: SearchCompleteData{
			SearchQuery:   searchQuery,
			SearchContext: searchContext,
			Provider:      e.cfg.SearchProvider,
		}}); err != nil {
			return nil, err
		}
	}

	if err := em.emit(Event{Type: EventStage1Start}); err != nil {
		return nil, err
	}
	stage1 := e.Stage1(ctx, question, searchContext)
	if err := em.emit(Event{Type: EventStage1Complete, Data: stage1}); err != nil {
		return nil, err
	}

	if len(successfulEntries(stage1)) == 0 {
		log.Printf(ctx, "turn aborted: no successful stage 1 responses")
		_ = em.emit(Event{Type: EventError, Message: AbortMessage})
		return &TurnResult{
			Stage1:  stage1,
			Stage3:  StageThreeResult{Model: "error", Response: AbortMessage},
			Aborted: true,
		}, nil
	}

	if err := em.emit(Event{Type: EventStage2Start}); err != nil {
		return nil, err
	}
	stage2, labelToModel := e.Stage2(ctx, question, stage1, searchContext)
	aggregate := AggregateRankings(stage2, labelToModel)
	metadata := TurnMetadata{
		LabelToModel:      labelToModel,
		AggregateRankings: aggregate,
		SearchQuery:       searchQuery,
		SearchContext:     searchContext,
	}
	if err := em.emit(Event{Type: EventStage2Complete, Data: stage2, Metadata: &metadata}); err != nil {
		return nil, err
	}

	if err := em.emit(Event{Type: EventStage3Start}); err != nil {
		return nil, err
	}
	stage3 := e.Stage3(ctx, question, stage1, stage2, searchContext)
	if err := em.emit(Event{Type: EventStage3Complete, Data: stage3}); err != nil {
		return nil, err
	}

	result := &TurnResult{
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   stage3,
		Metadata: metadata,
	}

	if titleCh != nil {
		result.Title = <-titleCh
		if err := em.emit(Event{Type: EventTitleComplete, Data: TitleData{Title: result.Title}}); err != nil {
			return nil, err
		}
	}

	if err := em.emit(Event{Type: EventComplete}); err != nil {
		return nil, err
	}

	return result, nil
}
