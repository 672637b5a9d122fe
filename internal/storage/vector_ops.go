package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// searchVector ranks every stored chunk against queryVector by cosine similarity.
// Rows are read in insertion order and sorted stably, so equal scores keep that order.
func searchVector(ctx context.Context, q querier, queryVector []float32, limit int) ([]VectorResult, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, file_metadata_id, chunk_index, chunk_text, embedding_json
		FROM chunk_embeddings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]VectorResult, 0)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var r VectorResult
		var payload string
		if err := rows.Scan(&r.ChunkID, &r.FileID, &r.ChunkIndex, &r.ChunkText, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}

		vector, err := decodeEmbedding(payload)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", r.ChunkID, err)
		}
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		r.SimilarityScore = cosineSimilarity(queryVector, vector)
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return topK(candidates, limit), nil
}

// sortCandidates sorts by score descending, keeping insertion order for ties
func sortCandidates(candidates []VectorResult) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})
}

// topK truncates to limit; limit <= 0 keeps everything
func topK(candidates []VectorResult, limit int) []VectorResult {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit]
}

// encodeEmbedding serializes a vector as a JSON array of numbers
func encodeEmbedding(vector []float32) (string, error) {
	if vector == nil {
		vector = []float32{}
	}
	for i, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return "", fmt.Errorf("embedding component %d is not finite", i)
		}
	}
	b, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("marshal embedding: %w", err)
	}
	return string(b), nil
}

// decodeEmbedding parses the JSON array stored in embedding_json
func decodeEmbedding(payload string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(payload), &vector); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return vector, nil
}

// cosineSimilarity computes dot(a,b) / (|a|*|b|). It is 0 for mismatched
// lengths or when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push |sim| a hair past 1
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// CosineSimilarity is an exported helper for the searcher and tests
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

// EncodeEmbedding is an exported helper for testing
func EncodeEmbedding(vector []float32) (string, error) {
	return encodeEmbedding(vector)
}

// DecodeEmbedding is an exported helper for testing
func DecodeEmbedding(payload string) ([]float32, error) {
	return decodeEmbedding(payload)
}
