package reference

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const embeddingDimensions = 384

var wordPattern = regexp.MustCompile(`[a-z0-9_]+`)

// localEmbedding is a hashed bag-of-words vector: deterministic, offline and
// good enough to rank a few dozen documentation chunks. Env variable names are
// kept whole, so a question mentioning QDRANT_URI lands on the right chunk.
func localEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDimensions)
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		vec[bucket(word)] += 1
		// env variable fragments (qdrant, uri) also count on their own
		if strings.Contains(word, "_") {
			for _, part := range strings.Split(word, "_") {
				if len(part) > 2 {
					vec[bucket(part)] += 0.5
				}
			}
		}
	}
	return normalize(vec), nil
}

func bucket(word string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return int(h.Sum32() % embeddingDimensions)
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
