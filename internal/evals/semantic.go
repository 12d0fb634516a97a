package evals

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/haasonsaas/crucible/pkg/models"
)

// DefaultSimilarityThreshold is the pass bar when a case does not set one.
const DefaultSimilarityThreshold = 0.8

// evalSimilarity scores how close the response is to the reference text.
// With an embedder configured it uses cosine similarity over embeddings;
// otherwise, or when the embedding call fails, it falls back to lexical
// overlap so similarity cases stay runnable against providers with no
// embedding endpoint.
func (d *Dispatcher) evalSimilarity(ctx context.Context, tc *models.TestCase, response string) *models.Verdict {
	if tc.SimilarTo == "" {
		return skipVerdict(TypeSimilarity, "similarity evaluation requires similar_to")
	}
	threshold := tc.SimilarityThreshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	if d.opts.Embedder != nil {
		vecs, err := d.opts.Embedder.EmbedBatch(ctx, []string{response, tc.SimilarTo})
		if err == nil && len(vecs) == 2 {
			return similarityVerdict(cosineSimilarity(vecs[0], vecs[1]), threshold, "embedding cosine")
		}
	}
	return similarityVerdict(lexicalSimilarity(response, tc.SimilarTo), threshold, "lexical overlap")
}

func similarityVerdict(sim, threshold float64, method string) *models.Verdict {
	score := clamp(sim, 0, 1)
	reason := fmt.Sprintf("%s similarity %.3f against threshold %.2f", method, score, threshold)
	return boolVerdict(TypeSimilarity, score >= threshold, score, reason)
}

// cosineSimilarity returns the cosine of the angle between two vectors, 0 for
// degenerate input.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// lexicalSimilarity is Jaccard overlap of the lowercased word sets. Crude,
// but dependency-free and monotonic enough for a fallback.
func lexicalSimilarity(a, b string) float64 {
	aw := wordSet(a)
	bw := wordSet(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	intersection := 0
	for w := range aw {
		if _, ok := bw[w]; ok {
			intersection++
		}
	}
	union := len(aw) + len(bw) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, `.,;:!?"'()[]{}`)
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}
