//go:build ignore

// Package main generates a synthetic markdown vault for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -notes 1000 -output testdata/vault
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numNotes  = flag.Int("notes", 1000, "Number of notes to generate")
	outputDir = flag.String("output", "testdata/vault", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var folders = []string{"inbox", "projects", "areas/health", "areas/finance", "resources/reading", "journal", "archive"}

var topics = []string{
	"kubernetes networking", "sourdough baking", "quarterly budget", "marathon training",
	"rust ownership", "garden planning", "tax preparation", "home network", "book notes",
	"meeting retrospective", "travel itinerary", "language learning", "sleep tracking",
}

var sentences = []string{
	"The main idea is to keep the feedback loop short.",
	"Revisit this after the next review.",
	"Numbers from last month were higher than expected.",
	"A checklist helps more than another tool.",
	"Write down the open questions before the call.",
	"Compare with the notes from the previous attempt.",
	"Small daily steps beat occasional large pushes.",
	"The second option trades speed for simplicity.",
}

var noteTemplate = `---
created: %s
tags: [%s]
---
# %s

%s

## Notes

%s

## Related

- [[%s]]
- [[%s]]
`

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	titles := make([]string, *numNotes)
	for i := range titles {
		titles[i] = fmt.Sprintf("%s %d", capitalize(topics[i%len(topics)]), i)
	}

	for i, title := range titles {
		folder := folders[rng.Intn(len(folders))]
		dir := filepath.Join(*outputDir, filepath.FromSlash(folder))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create %s: %v\n", dir, err)
			os.Exit(1)
		}

		topic := topics[i%len(topics)]
		content := fmt.Sprintf(noteTemplate,
			start.Add(time.Duration(i)*6*time.Hour).Format("2006-01-02"),
			strings.ReplaceAll(topic, " ", "-"),
			title,
			paragraph(rng, topic, 3),
			paragraph(rng, topic, 5),
			titles[rng.Intn(len(titles))],
			titles[rng.Intn(len(titles))],
		)

		name := strings.ReplaceAll(strings.ToLower(title), " ", "-") + ".md"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d notes in %s\n", *numNotes, *outputDir)
}

// paragraph mixes the topic into n random sentences.
func paragraph(rng *rand.Rand, topic string, n int) string {
	parts := make([]string, 0, n+1)
	parts = append(parts, fmt.Sprintf("These are working notes on %s.", topic))
	for range n {
		parts = append(parts, sentences[rng.Intn(len(sentences))])
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
