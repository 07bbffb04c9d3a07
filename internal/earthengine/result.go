package earthengine

import (
	"encoding/json"
	"fmt"
	"math"
)

// FeatureResult is one feature of a computed FeatureCollection.
type FeatureResult struct {
	ID         string          `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type featureCollectionResult struct {
	Features []FeatureResult `json:"features"`
}

// DecodeFeatures parses a computed FeatureCollection.
func DecodeFeatures(raw json.RawMessage) ([]FeatureResult, error) {
	var fc featureCollectionResult
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc.Features, nil
}

// DecodeNumber parses a computed number.
func DecodeNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("decode number: %w", err)
	}
	return f, nil
}

// DecodeDictionary parses a computed dictionary.
func DecodeDictionary(raw json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}
	return m, nil
}

// Float reads a numeric property. Missing, null and non-numeric values
// report false.
func Float(props map[string]any, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String reads a string property.
func String(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}
