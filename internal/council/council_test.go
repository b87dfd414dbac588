package council

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/llm-council/internal/provider"
)

const rankingCAB = "I compared all answers carefully.\n\nFINAL RANKING:\n1. Response C\n2. Response A\n3. Response B"

// councilFake serves a full deliberation: council members answer on their
// first call and rank on their second, the chairman and titler are dedicated
// models, and anything listed in failing errors every call.
func councilFake(failing map[string]*provider.CallError) *countingProvider {
	return newCountingProvider(func(req provider.Request, attempt int) (string, error) {
		if ce, ok := failing[req.Model]; ok {
			return "", ce
		}
		switch req.Model {
		case "chair":
			return "the synthesized answer", nil
		case "titler":
			return `"Testing the Council"`, nil
		}
		if attempt == 1 {
			return "answer from " + req.Model, nil
		}
		return rankingCAB, nil
	})
}

func testConfig() Config {
	return Config{
		CouncilModels: []string{"m1", "m2", "m3", "m4"},
		ChairmanModel: "chair",
		TitleModel:    "titler",
		QueryTimeout:  time.Second,
		TitleTimeout:  time.Second,
	}
}

func newTestEngine(fake *countingProvider) *Engine {
	e := New(testConfig(), provider.NewRouter(provider.ModeOpenRouter, fake, nil, nil), nil)
	e.invoker.retryDelay = time.Millisecond
	return e
}

func TestAssignLabels(t *testing.T) {
	resp := "ok"
	successful := []StageOneEntry{
		{Model: "m1", Response: &resp},
		{Model: "m3", Response: &resp},
	}

	labels, labelToModel := assignLabels(successful)

	assert.Equal(t, []string{"Response A", "Response B"}, labels)
	assert.Equal(t, map[string]string{
		"Response A": "m1",
		"Response B": "m3",
	}, labelToModel)

	empty, emptyMap := assignLabels(nil)
	assert.Empty(t, empty)
	assert.Empty(t, emptyMap)
}

func TestRunFullTurn(t *testing.T) {
	timeout := &provider.CallError{Kind: provider.KindTimeout, Message: "Request timed out"}
	fake := councilFake(map[string]*provider.CallError{"m4": timeout})
	e := newTestEngine(fake)

	result := e.Run(context.Background(), "what is the best language?", false)

	require.False(t, result.Aborted)
	require.Len(t, result.Stage1, 4)

	// Entries follow configured council order; only m4 failed.
	for i, model := range []string{"m1", "m2", "m3"} {
		assert.Equal(t, model, result.Stage1[i].Model)
		require.NotNil(t, result.Stage1[i].Response)
		assert.Nil(t, result.Stage1[i].Error)
	}
	require.NotNil(t, result.Stage1[3].Error)
	assert.Equal(t, provider.KindTimeout, *result.Stage1[3].Error)
	assert.Nil(t, result.Stage1[3].Response)

	// Labels cover only the three successful entries, in order.
	assert.Equal(t, map[string]string{
		"Response A": "m1",
		"Response B": "m2",
		"Response C": "m3",
	}, result.Metadata.LabelToModel)

	// m4 fails Stage 2 as well, so three rankers voted C, A, B.
	require.Len(t, result.Stage2, 4)
	assert.Equal(t, []string{"Response C", "Response A", "Response B"}, result.Stage2[0].ParsedRanking)
	require.NotNil(t, result.Stage2[3].Error)

	agg := result.Metadata.AggregateRankings
	require.Len(t, agg, 3)
	assert.Equal(t, AggregateRank{Model: "m3", AverageRank: 1.0, RankingsCount: 3}, agg[0])
	assert.Equal(t, AggregateRank{Model: "m1", AverageRank: 2.0, RankingsCount: 3}, agg[1])
	assert.Equal(t, AggregateRank{Model: "m2", AverageRank: 3.0, RankingsCount: 3}, agg[2])

	assert.Equal(t, "chair", result.Stage3.Model)
	assert.Equal(t, "the synthesized answer", result.Stage3.Response)
}

func TestRunAbortsWhenAllStage1Fail(t *testing.T) {
	refused := &provider.CallError{Kind: provider.KindConnection, Message: "Could not connect"}
	fake := councilFake(map[string]*provider.CallError{
		"m1": refused, "m2": refused, "m3": refused, "m4": refused,
	})
	e := newTestEngine(fake)

	result := e.Run(context.Background(), "anyone home?", false)

	require.True(t, result.Aborted)
	require.Len(t, result.Stage1, 4)
	assert.Empty(t, result.Stage2)
	assert.Equal(t, "error", result.Stage3.Model)
	assert.Equal(t, AbortMessage, result.Stage3.Response)

	// Stage 2 and the chairman must never have been invoked.
	assert.Equal(t, 0, fake.callCount("chair"))
	for _, model := range []string{"m1", "m2", "m3", "m4"} {
		assert.Equal(t, 1, fake.callCount(model))
	}
}

func TestChairmanFailureSubstitutesNotice(t *testing.T) {
	apiErr := &provider.CallError{Kind: provider.KindAPI, Message: "overloaded"}
	fake := councilFake(map[string]*provider.CallError{"chair": apiErr})
	e := newTestEngine(fake)

	result := e.Run(context.Background(), "q", false)

	require.False(t, result.Aborted)
	assert.Equal(t, "chair", result.Stage3.Model)
	assert.Equal(t, chairmanFailure, result.Stage3.Response)
}

func TestGenerateTitle(t *testing.T) {
	t.Run("trims quotes and whitespace", func(t *testing.T) {
		e := newTestEngine(councilFake(nil))
		assert.Equal(t, "Testing the Council", e.GenerateTitle(context.Background(), "q"))
	})

	t.Run("long titles are truncated", func(t *testing.T) {
		long := "A Very Long Title That Goes On And On Well Past Fifty Characters"
		fake := newCountingProvider(func(provider.Request, int) (string, error) {
			return long, nil
		})
		e := newTestEngine(fake)

		got := e.GenerateTitle(context.Background(), "q")

		assert.Len(t, got, 50)
		assert.Equal(t, long[:47]+"...", got)
	})

	t.Run("failure falls back", func(t *testing.T) {
		refused := &provider.CallError{Kind: provider.KindConnection, Message: "no"}
		e := newTestEngine(councilFake(map[string]*provider.CallError{"titler": refused}))
		assert.Equal(t, "New Conversation", e.GenerateTitle(context.Background(), "q"))
	})
}

func eventTypes(events []Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestRunStreamEventOrder(t *testing.T) {
	fake := councilFake(nil)
	e := newTestEngine(fake)

	var events []Event
	sink := func(ev Event) error {
		events = append(events, ev)
		return nil
	}

	result, err := e.RunStream(context.Background(), "q", false, true, sink)
	require.NoError(t, err)
	require.False(t, result.Aborted)

	assert.Equal(t, []string{
		EventStage1Start,
		EventStage1Complete,
		EventStage2Start,
		EventStage2Complete,
		EventStage3Start,
		EventStage3Complete,
		EventTitleComplete,
		EventComplete,
	}, eventTypes(events))

	// stage2_complete carries the turn metadata alongside the entries. All
	// four answers succeeded, but the rankings only ever name three labels.
	stage2Complete := events[3]
	require.NotNil(t, stage2Complete.Metadata)
	assert.Len(t, stage2Complete.Metadata.LabelToModel, 4)
	assert.Len(t, stage2Complete.Metadata.AggregateRankings, 3)

	assert.Equal(t, "Testing the Council", result.Title)
	assert.Equal(t, TitleData{Title: "Testing the Council"}, events[6].Data)
}

func TestRunStreamAbort(t *testing.T) {
	refused := &provider.CallError{Kind: provider.KindConnection, Message: "no"}
	fake := councilFake(map[string]*provider.CallError{
		"m1": refused, "m2": refused, "m3": refused, "m4": refused,
	})
	e := newTestEngine(fake)

	var events []Event
	sink := func(ev Event) error {
		events = append(events, ev)
		return nil
	}

	result, err := e.RunStream(context.Background(), "q", false, false, sink)
	require.NoError(t, err)
	require.True(t, result.Aborted)

	// The error event is terminal: nothing follows it.
	assert.Equal(t, []string{
		EventStage1Start,
		EventStage1Complete,
		EventError,
	}, eventTypes(events))
	assert.Equal(t, AbortMessage, events[2].Message)
}

func TestRunStreamStopsOnSinkFailure(t *testing.T) {
	e := newTestEngine(councilFake(nil))

	calls := 0
	sink := func(Event) error {
		calls++
		if calls > 1 {
			return context.Canceled
		}
		return nil
	}

	result, err := e.RunStream(context.Background(), "q", false, false, sink)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestStageTwoEntryJSONRoundTrip(t *testing.T) {
	ranking := rankingCAB
	entry := StageTwoEntry{
		Model:         "m1",
		Ranking:       &ranking,
		ParsedRanking: []string{"Response C", "Response A", "Response B"},
	}

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded StageTwoEntry
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, entry, decoded)

	// Failed entries survive the trip too, null response included.
	kind := provider.KindTimeout
	failed := StageTwoEntry{Model: "m2", ParsedRanking: []string{}, Error: &kind, ErrorMessage: "Request timed out"}
	raw, err = json.Marshal(failed)
	require.NoError(t, err)

	var decodedFailed StageTwoEntry
	require.NoError(t, json.Unmarshal(raw, &decodedFailed))
	assert.Equal(t, failed, decodedFailed)
}
