package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var errEmptyEmbedding = errors.New("embedding is empty")

// EncodeEmbedding serializes a vector as a JSON array of floats, e.g. "[0.1,-0.2]".
func EncodeEmbedding(embedding []float32) (string, error) {
	if len(embedding) == 0 {
		return "", errEmptyEmbedding
	}
	for i, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return "", fmt.Errorf("embedding value %d is not finite", i)
		}
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return "", fmt.Errorf("marshal embedding: %w", err)
	}
	return string(data), nil
}

// DecodeEmbedding parses the JSON text produced by EncodeEmbedding.
func DecodeEmbedding(text string) ([]float32, error) {
	var embedding []float32
	if err := json.Unmarshal([]byte(text), &embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	if len(embedding) == 0 {
		return nil, errEmptyEmbedding
	}
	return embedding, nil
}
