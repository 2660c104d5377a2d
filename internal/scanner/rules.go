package scanner

import (
	"fmt"
	"math"

	"OptionSentinel/internal/config"
	"OptionSentinel/internal/model"
)

// reading is what the rules see of one scan.
type reading struct {
	volumeOI     float64
	putCall      float64
	callVolume   float64
	atmIV        float64
	ivPercentile float64

	hasDistribution bool
	skewness        float64
	probUp          float64
	probDown        float64

	ivChange *float64
}

// evaluate runs every rule in a fixed order.
func evaluate(th config.Scanner, r reading) []model.Alert {
	var alerts []model.Alert
	for _, rule := range []func(config.Scanner, reading) (model.Alert, bool){
		ruleUnusualVolume,
		rulePutCall,
		ruleHighIV,
		ruleSkew,
		ruleBias,
		ruleIVChange,
	} {
		if a, ok := rule(th, r); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// ruleUnusualVolume fires when today's volume is large against open interest.
func ruleUnusualVolume(th config.Scanner, r reading) (model.Alert, bool) {
	if r.volumeOI <= th.UnusualVolumeRatio {
		return model.Alert{}, false
	}
	return model.Alert{
		Kind:    model.AlertUnusualVolume,
		Message: fmt.Sprintf("UNUSUAL VOLUME: Vol/OI ratio %.2fx", r.volumeOI),
	}, true
}

// rulePutCall flags one-sided flow. The ratio is undefined without call volume.
func rulePutCall(th config.Scanner, r reading) (model.Alert, bool) {
	if r.callVolume <= 0 || th.PutCallRatio <= 0 {
		return model.Alert{}, false
	}
	switch {
	case r.putCall > th.PutCallRatio:
		return model.Alert{
			Kind:    model.AlertHighPutCall,
			Message: fmt.Sprintf("HIGH PUT/CALL: %.2f", r.putCall),
		}, true
	case r.putCall < 1/th.PutCallRatio:
		return model.Alert{
			Kind:    model.AlertHighCall,
			Message: fmt.Sprintf("HIGH CALL ACTIVITY: P/C %.2f", r.putCall),
		}, true
	}
	return model.Alert{}, false
}

func ruleHighIV(th config.Scanner, r reading) (model.Alert, bool) {
	if r.ivPercentile <= th.IVPercentileAlert {
		return model.Alert{}, false
	}
	return model.Alert{
		Kind:    model.AlertHighIV,
		Message: fmt.Sprintf("HIGH IV: %.1f%% (%.0fth percentile)", r.atmIV*100, r.ivPercentile),
	}, true
}

func ruleSkew(th config.Scanner, r reading) (model.Alert, bool) {
	if !r.hasDistribution {
		return model.Alert{}, false
	}
	switch {
	case r.skewness < th.BearishSkew:
		return model.Alert{
			Kind:    model.AlertBearishSkew,
			Message: fmt.Sprintf("BEARISH SKEW: %.2f", r.skewness),
		}, true
	case r.skewness > th.BullishSkew:
		return model.Alert{
			Kind:    model.AlertBullishSkew,
			Message: fmt.Sprintf("BULLISH SKEW: %.2f", r.skewness),
		}, true
	}
	return model.Alert{}, false
}

// ruleBias checks the up side first; both cannot exceed 0.5 at once.
func ruleBias(th config.Scanner, r reading) (model.Alert, bool) {
	if !r.hasDistribution {
		return model.Alert{}, false
	}
	switch {
	case r.probUp > th.DirectionalProb:
		return model.Alert{
			Kind:    model.AlertBullishBias,
			Message: fmt.Sprintf("BULLISH BIAS: %.0f%% prob up", r.probUp*100),
		}, true
	case r.probDown > th.DirectionalProb:
		return model.Alert{
			Kind:    model.AlertBearishBias,
			Message: fmt.Sprintf("BEARISH BIAS: %.0f%% prob down", r.probDown*100),
		}, true
	}
	return model.Alert{}, false
}

func ruleIVChange(th config.Scanner, r reading) (model.Alert, bool) {
	if r.ivChange == nil || math.Abs(*r.ivChange) <= th.IVChange {
		return model.Alert{}, false
	}
	direction := "UP"
	if *r.ivChange < 0 {
		direction = "DOWN"
	}
	return model.Alert{
		Kind:    model.AlertIVChange,
		Message: fmt.Sprintf("IV CHANGE %s: %+.1f%%", direction, *r.ivChange*100),
	}, true
}
