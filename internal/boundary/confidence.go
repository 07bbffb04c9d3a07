package boundary

// Confidence weights of the heuristic score.
const (
	weightIndex      = 0.5
	weightUniformity = 0.3
	weightSize       = 0.2

	saturatingMean   = 0.8
	saturatingStdDev = 0.3
	saturatingAreaHa = 10.0
)

// Confidence scores a detected field in [0, 1]. High, uniform NDVI over a
// field-sized area scores highest. The weights are fixed, not calibrated.
func Confidence(meanNDVI, stdDevNDVI, areaHa float64) float64 {
	return weightIndex*clamp01(meanNDVI/saturatingMean) +
		weightUniformity*clamp01(1-stdDevNDVI/saturatingStdDev) +
		weightSize*clamp01(areaHa/saturatingAreaHa)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// InterpretConfidence describes a confidence score.
func InterpretConfidence(score float64) string {
	switch {
	case score >= 0.8:
		return "High confidence - Well-defined field boundary"
	case score >= 0.6:
		return "Good confidence - Boundary likely accurate"
	case score >= 0.4:
		return "Moderate confidence - Manual verification recommended"
	default:
		return "Low confidence - Boundary may be inaccurate"
	}
}

// InterpretUniformity describes the NDVI standard deviation inside a field.
func InterpretUniformity(stdDev float64) string {
	switch {
	case stdDev < 0.1:
		return "Uniform"
	case stdDev < 0.2:
		return "Moderate"
	default:
		return "Variable"
	}
}
