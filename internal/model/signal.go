package model

import "time"

// AlertKind classifies a scanner alert.
type AlertKind string

const (
	AlertUnusualVolume AlertKind = "UNUSUAL_VOLUME"
	AlertHighPutCall   AlertKind = "HIGH_PUT_CALL"
	AlertHighCall      AlertKind = "HIGH_CALL_ACTIVITY"
	AlertHighIV        AlertKind = "HIGH_IV"
	AlertBearishSkew   AlertKind = "BEARISH_SKEW"
	AlertBullishSkew   AlertKind = "BULLISH_SKEW"
	AlertBullishBias   AlertKind = "BULLISH_BIAS"
	AlertBearishBias   AlertKind = "BEARISH_BIAS"
	AlertIVChange      AlertKind = "IV_CHANGE"
)

// Alert is one triggered scanner rule.
type Alert struct {
	Kind    AlertKind
	Message string
}

// Weight ranks alerts: unusual activity first, then "high" readings, then the rest.
func (a Alert) Weight() int {
	switch a.Kind {
	case AlertUnusualVolume:
		return 3
	case AlertHighPutCall, AlertHighCall, AlertHighIV:
		return 2
	default:
		return 1
	}
}

// ScanResult is the outcome of scanning one symbol.
type ScanResult struct {
	Symbol          string
	Timestamp       time.Time
	Expiration      time.Time
	CurrentPrice    float64
	ExpectedMovePct float64
	ATMIV           float64
	Skewness        float64
	ProbUp          float64
	ProbDown        float64
	PutCallRatio    float64
	TotalVolume     float64
	TotalOI         float64
	VolumeOIRatio   float64
	Alerts          []Alert

	// Changes against the previous scan of the same symbol, nil on the first scan.
	IVChange   *float64
	SkewChange *float64
}

// HasAlerts reports whether any rule fired.
func (r *ScanResult) HasAlerts() bool { return len(r.Alerts) > 0 }

// Score sums alert weights.
func (r *ScanResult) Score() int {
	score := 0
	for _, a := range r.Alerts {
		score += a.Weight()
	}
	return score
}
