// compare checks one target document against every document in a folder. For each pair it
// prints word overlap, exact occurrences of the target, edit distance, 3-word shingle overlap
// and the semantic similarity reported by the API, then names the most similar document.
//
// Usage:
//
//	go run ./cmd/compare -target essay.txt -dir submissions/ -api-url http://localhost:5000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/formbricks/similarity/internal/documents"
	"github.com/formbricks/similarity/internal/lexical"
	"github.com/formbricks/similarity/pkg/similarity"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	errTargetRequired = errors.New("-target is required")
	errDirRequired    = errors.New("-dir is required")
	errNoDocuments    = errors.New("no supported documents found")
)

// options holds the CLI configuration.
type options struct {
	Target      string
	Dir         string
	APIURL      string
	Timeout     time.Duration
	Concurrency int
}

// result is one row of the comparison report.
type result struct {
	Name     string
	Lexical  lexical.Report
	Semantic float64
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}

		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	results, err := compare(ctx, opts, logger)
	if err != nil {
		logger.Error("comparison failed", "error", err)

		return exitFailure
	}

	printReport(stdout, results)

	return exitSuccess
}

func parseFlags(args []string, output io.Writer) (options, error) {
	opts := options{}

	apiURL := os.Getenv("SIMILARITY_API_URL")
	if apiURL == "" {
		apiURL = similarity.DefaultBaseURL
	}

	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.Target, "target", "", "Document to check (.txt or .docx, required)")
	fs.StringVar(&opts.Dir, "dir", "", "Folder of documents to compare against (required)")
	fs.StringVar(&opts.APIURL, "api-url", apiURL, "Similarity API base URL (env SIMILARITY_API_URL)")
	fs.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "Timeout per similarity request")
	fs.IntVar(&opts.Concurrency, "concurrency", 4, "Similarity requests in flight at once")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case opts.Target == "":
		fs.Usage()

		return opts, errTargetRequired
	case opts.Dir == "":
		fs.Usage()

		return opts, errDirRequired
	}

	return opts, nil
}

// compare loads the documents, asks the API for every semantic score and adds the lexical
// measures. Results keep the folder's order.
func compare(ctx context.Context, opts options, logger *slog.Logger) ([]result, error) {
	target, err := documents.Read(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("read target: %w", err)
	}

	docs, err := documents.ReadDir(opts.Dir, logger)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoDocuments, opts.Dir)
	}

	logger.Info("comparing documents", "target", opts.Target, "documents", len(docs), "api_url", opts.APIURL)

	client := similarity.NewClientWithOptions(similarity.ClientOptions{
		BaseURL: opts.APIURL,
		Timeout: opts.Timeout,
	})

	matches, err := client.CompareAllWithOptions(ctx, target, docs,
		similarity.CompareAllOptions{Concurrency: opts.Concurrency})
	if err != nil {
		return nil, err
	}

	results := make([]result, len(docs))
	for i, doc := range docs {
		results[i] = result{
			Name:     doc.Name,
			Lexical:  lexical.Compare(target, doc.Text),
			Semantic: matches[i].Similarity,
		}
	}

	return results, nil
}

func printReport(w io.Writer, results []result) {
	matches := make([]similarity.Match, len(results))

	fmt.Fprintln(w, "Comparison Results")
	fmt.Fprintln(w, "──────────────────")

	for i, r := range results {
		matches[i] = similarity.Match{Name: r.Name, Similarity: r.Semantic}

		fmt.Fprintf(w, "Compared with: %s\n", r.Name)
		fmt.Fprintf(w, "   Jaccard similarity:      %.2f%%\n", r.Lexical.Jaccard)
		fmt.Fprintf(w, "   KMP exact matches:       %d\n", r.Lexical.ExactMatches)
		fmt.Fprintf(w, "   Levenshtein distance:    %d\n", r.Lexical.Levenshtein)
		fmt.Fprintf(w, "   K-shingling (%d-word):    %.2f%%\n", lexical.DefaultShingleSize, r.Lexical.Shingles)
		fmt.Fprintf(w, "   Semantic similarity:     %.2f%%\n", r.Semantic)
		fmt.Fprintln(w)
	}

	if best, ok := similarity.BestMatch(matches); ok {
		fmt.Fprintf(w, "Most similar document: %s\n", best.Name)
		fmt.Fprintf(w, "Semantic similarity:   %.2f%%\n", best.Similarity)
	}
}
