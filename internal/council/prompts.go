package council

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/johnayoung/llm-council/internal/provider"
)

// Default prompt templates. Each can be overridden through settings; the
// overrides use the same text/template fields.
const (
	DefaultStage2Prompt = `You are evaluating responses to the following question:

{{.UserQuery}}

{{.SearchContextBlock}}Here are the responses from different AI models, anonymized:

{{.ResponsesText}}

Evaluate each response for accuracy, completeness, clarity, and how directly it answers the question. Think through the strengths and weaknesses of each one.

Then end your evaluation with a section in exactly this format:

FINAL RANKING:
1. Response X
2. Response Y
3. Response Z

where the first entry is the best response. Every response must appear exactly once.`

	DefaultStage3Prompt = `You are the chairman of an AI council. Several models answered a user's question, then ranked each other's answers. Synthesize the single best final answer.

Question: {{.UserQuery}}

{{.SearchContextBlock}}Individual responses:

{{.Stage1Text}}

Peer rankings:

{{.Stage2Text}}

Produce one final answer that draws on the strongest material above. Do not mention the council, the models, or the ranking process. Answer the question directly.`

	DefaultTitlePrompt = `Generate a short title (3-5 words) for a conversation that starts with this message. Respond with the title only, no quotes.

Message: {{.UserQuery}}`

	DefaultSearchQueryPrompt = `Convert this question into a short web search query (at most 8 words). Respond with the query only, no quotes.

Question: {{.UserQuery}}`
)

// searchPreamble wraps the user question when search context is available.
// Kept fixed rather than configurable: models tend to refuse real-time
// questions without this exact framing.
const searchPreamble = `You have access to the following real-time web search results.
You MUST use this information to answer the question, even if it contradicts your internal knowledge cutoff.
Do not say "I cannot access real-time information" or "My knowledge is limited to..." because you have the search results right here.

Search Results:
%s

Question: %s`

type promptData struct {
	UserQuery          string
	ResponsesText      string
	SearchContextBlock string
	Stage1Text         string
	Stage2Text         string
}

// renderPrompt executes a user-configurable template, falling back to the
// given text when the template is malformed. Prompt construction never
// aborts a turn.
func renderPrompt(tmplText string, data promptData, fallback string) string {
	tmpl, err := template.New("prompt").Parse(tmplText)
	if err != nil {
		return fallback
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fallback
	}
	return buf.String()
}

func searchContextBlock(searchContext string) string {
	if searchContext == "" {
		return ""
	}
	return fmt.Sprintf("Context from Web Search:\n%s\n", searchContext)
}

func buildStage1Prompt(question, searchContext string) string {
	if searchContext == "" {
		return question
	}
	return fmt.Sprintf(searchPreamble, searchContext, question)
}

func buildStage2Prompt(tmplText, question string, labels []string, successful []StageOneEntry, searchContext string) string {
	blocks := make([]string, len(successful))
	for i, entry := range successful {
		blocks[i] = fmt.Sprintf("%s:\n%s", labels[i], *entry.Response)
	}
	responsesText := strings.Join(blocks, "\n\n")

	fallback := fmt.Sprintf("Question: %s\n\n%s\n\nRank these responses.", question, responsesText)
	return renderPrompt(tmplText, promptData{
		UserQuery:          question,
		ResponsesText:      responsesText,
		SearchContextBlock: searchContextBlock(searchContext),
	}, fallback)
}

func buildStage3Prompt(tmplText, question string, stage1 []StageOneEntry, stage2 []StageTwoEntry, searchContext string) string {
	stage1Blocks := make([]string, len(stage1))
	for i, entry := range stage1 {
		response := ""
		if entry.Response != nil {
			response = *entry.Response
		}
		stage1Blocks[i] = fmt.Sprintf("Model: %s\nResponse: %s", entry.Model, response)
	}

	stage2Blocks := make([]string, len(stage2))
	for i, entry := range stage2 {
		ranking := ""
		if entry.Ranking != nil {
			ranking = *entry.Ranking
		}
		stage2Blocks[i] = fmt.Sprintf("Model: %s\nRanking: %s", entry.Model, ranking)
	}

	fallback := fmt.Sprintf("Question: %s\n\nSynthesis required.", question)
	return renderPrompt(tmplText, promptData{
		UserQuery:          question,
		Stage1Text:         strings.Join(stage1Blocks, "\n\n"),
		Stage2Text:         strings.Join(stage2Blocks, "\n\n"),
		SearchContextBlock: searchContextBlock(searchContext),
	}, fallback)
}

func userMessage(content string) []provider.Message {
	return []provider.Message{{Role: "user", Content: content}}
}
