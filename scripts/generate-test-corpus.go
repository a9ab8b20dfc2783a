//go:build ignore

// Package main generates a synthetic text corpus for benchmarking index
// builds and fan-out queries. Each file imitates PDF-extracted prose:
// paragraphs of varying length with form-feed page breaks.
// Usage: go run scripts/generate-test-corpus.go -files 100 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 100, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	pages     = flag.Int("pages", 12, "Pages per document")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// Topic vocabulary the generator draws on. Repetition across documents is
// intentional: it exercises cross-shard deduplication.
var subjects = []string{
	"the navigation of coastal waters", "the fermentation of grain",
	"the migration of seabirds", "the construction of stone bridges",
	"the cultivation of orchards", "the repair of mechanical clocks",
	"the preservation of manuscripts", "the forging of hand tools",
	"the breeding of draft horses", "the charting of river deltas",
}

var verbs = []string{
	"requires careful attention to", "was historically governed by",
	"depends above all on", "is complicated by", "rewards a study of",
	"cannot proceed without", "is best understood through",
}

var objects = []string{
	"seasonal variation", "the quality of raw materials",
	"local custom and regulation", "precise measurement",
	"the experience of practitioners", "favorable weather",
	"long apprenticeship", "written records of earlier attempts",
}

func sentence(r *rand.Rand) string {
	subject := subjects[r.Intn(len(subjects))]
	return fmt.Sprintf("%s%s %s %s. ",
		strings.ToUpper(subject[:1]), subject[1:],
		verbs[r.Intn(len(verbs))],
		objects[r.Intn(len(objects))])
}

func paragraph(r *rand.Rand) string {
	var b strings.Builder
	for i, n := 0, 3+r.Intn(5); i < n; i++ {
		b.WriteString(sentence(r))
	}
	b.WriteString("\n\n")
	return b.String()
}

func page(r *rand.Rand) string {
	var b strings.Builder
	for i, n := 0, 4+r.Intn(4); i < n; i++ {
		b.WriteString(paragraph(r))
	}
	return b.String()
}

func main() {
	flag.Parse()
	r := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		var doc strings.Builder
		for p := 0; p < *pages; p++ {
			if p > 0 {
				doc.WriteString("\f")
			}
			doc.WriteString(page(r))
		}
		name := fmt.Sprintf("doc-%04d.txt", i)
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(doc.String()), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d documents (%d pages each) in %s\n", *numFiles, *pages, *outputDir)
}
