package council

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildStage1Prompt(t *testing.T) {
	assert.Equal(t, "plain question", buildStage1Prompt("plain question", ""))

	withSearch := buildStage1Prompt("what happened today?", "Result 1: news")
	assert.Contains(t, withSearch, "Result 1: news")
	assert.Contains(t, withSearch, "Question: what happened today?")
	assert.Contains(t, withSearch, "real-time web search results")
}

func TestBuildStage2Prompt(t *testing.T) {
	resp1, resp2 := "first answer", "second answer"
	successful := []StageOneEntry{
		{Model: "m1", Response: &resp1},
		{Model: "m2", Response: &resp2},
	}

	prompt := buildStage2Prompt(DefaultStage2Prompt, "the question", []string{"Response A", "Response B"}, successful, "")

	assert.Contains(t, prompt, "the question")
	assert.Contains(t, prompt, "Response A:\nfirst answer")
	assert.Contains(t, prompt, "Response B:\nsecond answer")
	assert.Contains(t, prompt, "FINAL RANKING:")
	// Anonymized: model identities never reach the rankers.
	assert.NotContains(t, prompt, "m1")
	assert.NotContains(t, prompt, "m2")
}

func TestBuildStage3PromptCarriesAttribution(t *testing.T) {
	resp := "an answer"
	ranking := "FINAL RANKING:\n1. Response A"
	stage1 := []StageOneEntry{{Model: "m1", Response: &resp}}
	stage2 := []StageTwoEntry{{Model: "m2", Ranking: &ranking, ParsedRanking: []string{"Response A"}}}

	prompt := buildStage3Prompt(DefaultStage3Prompt, "q", stage1, stage2, "")

	assert.Contains(t, prompt, "Model: m1")
	assert.Contains(t, prompt, "Model: m2")
	assert.Contains(t, prompt, "an answer")
}

func TestRenderPromptFallsBack(t *testing.T) {
	data := promptData{UserQuery: "q"}

	t.Run("malformed template", func(t *testing.T) {
		got := renderPrompt("{{.UserQuery", data, "fallback text")
		assert.Equal(t, "fallback text", got)
	})

	t.Run("unknown field", func(t *testing.T) {
		got := renderPrompt("{{.NoSuchField}}", data, "fallback text")
		assert.Equal(t, "fallback text", got)
	})

	t.Run("valid template", func(t *testing.T) {
		got := renderPrompt("Question: {{.UserQuery}}", data, "fallback text")
		assert.Equal(t, "Question: q", got)
	})
}

func TestSearchContextBlock(t *testing.T) {
	assert.Empty(t, searchContextBlock(""))
	assert.True(t, strings.HasPrefix(searchContextBlock("stuff"), "Context from Web Search:"))
}
