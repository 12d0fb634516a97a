package evals

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/haasonsaas/crucible/pkg/models"
)

type fakeEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func TestEvalSimilarityEmbedding(t *testing.T) {
	emb := &fakeEmbedder{vectors: [][]float32{{1, 0, 0}, {1, 0, 0}}}
	d := New(Options{Embedder: emb})
	tc := &models.TestCase{SimilarTo: "the same thing"}

	v := d.Evaluate(context.Background(), tc, "the same thing")
	if !v.Passed() {
		t.Fatalf("identical vectors should pass: %+v", v)
	}
	if math.Abs(v.Score-1) > 1e-9 {
		t.Errorf("Score = %v, want 1", v.Score)
	}
	if emb.calls != 1 {
		t.Errorf("embedder calls = %d, want 1", emb.calls)
	}
	if !strings.Contains(v.Reason, "embedding") {
		t.Errorf("Reason = %q, want the embedding method named", v.Reason)
	}
}

func TestEvalSimilarityOrthogonalFails(t *testing.T) {
	emb := &fakeEmbedder{vectors: [][]float32{{1, 0}, {0, 1}}}
	d := New(Options{Embedder: emb})
	tc := &models.TestCase{SimilarTo: "something unrelated"}

	v := d.Evaluate(context.Background(), tc, "different entirely")
	if v.Passed() {
		t.Fatalf("orthogonal vectors should fail: %+v", v)
	}
	if v.Score != 0 {
		t.Errorf("Score = %v, want 0", v.Score)
	}
}

func TestEvalSimilarityThresholdOverride(t *testing.T) {
	// cos(45°) ≈ 0.707, below the 0.8 default but above 0.5.
	emb := &fakeEmbedder{vectors: [][]float32{{1, 0}, {1, 1}}}

	d := New(Options{Embedder: emb})
	tc := &models.TestCase{SimilarTo: "ref"}
	if v := d.Evaluate(context.Background(), tc, "resp"); v.Passed() {
		t.Fatalf("0.707 should fail the 0.8 default: %+v", v)
	}

	tc = &models.TestCase{SimilarTo: "ref", SimilarityThreshold: 0.5}
	if v := d.Evaluate(context.Background(), tc, "resp"); !v.Passed() {
		t.Fatalf("0.707 should pass a 0.5 threshold: %+v", v)
	}
}

func TestEvalSimilarityEmbedderErrorFallsBack(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embedding endpoint down")}
	d := New(Options{Embedder: emb})
	tc := &models.TestCase{SimilarTo: "the quick brown fox", SimilarityThreshold: 0.9}

	v := d.Evaluate(context.Background(), tc, "the quick brown fox")
	if !v.Passed() {
		t.Fatalf("identical text should pass via the lexical fallback: %+v", v)
	}
	if !strings.Contains(v.Reason, "lexical") {
		t.Errorf("Reason = %q, want the fallback method named", v.Reason)
	}
}

func TestEvalSimilarityNoEmbedder(t *testing.T) {
	d := New(Options{})
	tc := &models.TestCase{SimilarTo: "completely different words here", SimilarityThreshold: 0.5}

	v := d.Evaluate(context.Background(), tc, "nothing shared at all today")
	if v.Passed() {
		t.Fatalf("disjoint text should fail: %+v", v)
	}
}

func TestEvalSimilarityMissingReference(t *testing.T) {
	d := New(Options{})
	v := d.Evaluate(context.Background(), &models.TestCase{Type: TypeSimilarity}, "response")
	if v.Pass != nil {
		t.Errorf("Pass = %v, want nil without similar_to", *v.Pass)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLexicalSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "the cat sat", "the cat sat", 1},
		{"disjoint", "alpha beta", "gamma delta", 0},
		{"case and punctuation ignored", "Hello, World!", "hello world", 1},
		{"half overlap", "a b c d", "a b x y", 1.0 / 3.0},
		{"empty side", "", "words", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lexicalSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("lexicalSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
