package similarity

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const defaultCompareConcurrency = 4

// Document is a named text to compare against a target.
type Document struct {
	Name string
	Text string
}

// Match is the semantic similarity of one document to the target.
type Match struct {
	Name       string
	Similarity float64
}

// CompareAllOptions configures CompareAll.
type CompareAllOptions struct {
	// Concurrency bounds in-flight requests (default: 4).
	Concurrency int
}

// CompareAll scores every document against target and returns one Match per document, in input
// order. The first failed comparison cancels the rest and is returned with the document's name.
func (c *Client) CompareAll(ctx context.Context, target string, docs []Document) ([]Match, error) {
	return c.CompareAllWithOptions(ctx, target, docs, CompareAllOptions{})
}

// CompareAllWithOptions is CompareAll with custom options.
func (c *Client) CompareAllWithOptions(
	ctx context.Context, target string, docs []Document, opts CompareAllOptions,
) ([]Match, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultCompareConcurrency
	}

	matches := make([]Match, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			score, err := c.Compare(gctx, target, doc.Text)
			if err != nil {
				return fmt.Errorf("compare with %q: %w", doc.Name, err)
			}

			matches[i] = Match{Name: doc.Name, Similarity: score}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return matches, nil
}

// BestMatch returns the match with the highest similarity. On a tie the earliest match wins.
// ok is false when matches is empty.
func BestMatch(matches []Match) (best Match, ok bool) {
	for i, m := range matches {
		if i == 0 || m.Similarity > best.Similarity {
			best = m
		}
	}

	return best, len(matches) > 0
}
