package anomaly

// Level is the aggregate risk of an attempt. It uses the severity scale.
type Level = Severity

const (
	LevelLow      = SeverityLow
	LevelMedium   = SeverityMedium
	LevelHigh     = SeverityHigh
	LevelCritical = SeverityCritical
)

// Classify maps anomalies to a risk level. First matching rule wins:
//
//	critical: any critical, or two or more high
//	high:     exactly one high, or three or more medium
//	medium:   one or two medium
//	low:      anything else, including no anomalies
func Classify(anomalies ...[]Anomaly) Level {
	var high, medium, critical int
	for _, list := range anomalies {
		for _, a := range list {
			switch a.Severity {
			case SeverityCritical:
				critical++
			case SeverityHigh:
				high++
			case SeverityMedium:
				medium++
			}
		}
	}

	switch {
	case critical > 0 || high >= 2:
		return LevelCritical
	case high == 1 || medium >= 3:
		return LevelHigh
	case medium >= 1:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Max returns the higher of two levels. An empty level counts as lowest.
func Max(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Thresholds decide when compliance findings force quarantine.
type Thresholds struct {
	Critical int `toml:"critical"`
	High     int `toml:"high"`
}

// DefaultThresholds quarantines on one critical or two high findings.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 1, High: 2}
}

// Exceeded reports whether list meets either threshold.
func (t Thresholds) Exceeded(list []Anomaly) bool {
	if t.Critical > 0 && Count(list, SeverityCritical) >= t.Critical {
		return true
	}
	if t.High > 0 && Count(list, SeverityHigh) >= t.High {
		return true
	}
	return false
}
