package metrics

// HTTPDurationBuckets defines latency buckets for HTTP request duration metrics.
var HTTPDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// LLMDurationBuckets covers model calls, which routinely take tens of seconds.
var LLMDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120}

// RoundBuckets counts tool-calling rounds per turn.
var RoundBuckets = []float64{1, 2, 3, 4, 5, 6, 8, 10}
