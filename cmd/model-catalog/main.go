// Command model-catalog dumps the model catalogs of the configured
// providers as JSON, for keeping frontend model pickers in sync.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/johnayoung/llm-council/internal/provider"
)

type catalog struct {
	Source string               `json:"source"`
	Models []provider.ModelInfo `json:"models"`
	Error  string               `json:"error,omitempty"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		sourcesF   = flag.String("sources", "openrouter,ollama", "Comma-separated catalog sources (openrouter, ollama, deepseek)")
		ollamaURLF = flag.String("ollama-url", "http://localhost:11434", "Ollama base URL")
		outputF    = flag.String("output", "", "Write JSON to file instead of stdout")
		timeoutF   = flag.Int("timeout", 30, "Fetch timeout in seconds")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutF)*time.Second)
	defer cancel()

	listers := map[string]provider.ModelLister{
		"openrouter": provider.NewOpenRouter(os.Getenv("OPENROUTER_API_KEY")),
		"ollama":     provider.NewOllama(*ollamaURLF),
		"deepseek":   provider.NewDeepSeek(os.Getenv("DEEPSEEK_API_KEY")),
	}

	var catalogs []catalog
	for _, source := range strings.Split(*sourcesF, ",") {
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		lister, ok := listers[source]
		if !ok {
			return fmt.Errorf("unknown source: %s", source)
		}
		entry := catalog{Source: source}
		models, err := lister.ListModels(ctx)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Models = models
		}
		catalogs = append(catalogs, entry)
	}

	w := os.Stdout
	if *outputF != "" {
		f, err := os.Create(*outputF)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(catalogs)
}
