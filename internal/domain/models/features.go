package models

// FeatureVector is the fixed 25-feature numeric encoding of a
// (Setup, Context) pair. Every field is finite; missing source data maps
// to a documented default, never NaN.
type FeatureVector struct {
	ConfluenceScore   float64 `json:"confluenceScore"`
	ConfluenceGex     float64 `json:"confluenceGex"`
	ConfluenceVwap    float64 `json:"confluenceVwap"`
	ConfluenceCluster float64 `json:"confluenceCluster"`
	ConfluenceFlow    float64 `json:"confluenceFlow"`
	ConfluenceProfile float64 `json:"confluenceProfile"`

	RegimeType          float64 `json:"regimeType"` // 0 unknown, 1 trending, 2 ranging, 3 breakout, 4 compression
	RegimeCompatibility float64 `json:"regimeCompatibility"`

	FlowSweepCount float64 `json:"flowSweepCount"`
	FlowVolume     float64 `json:"flowVolume"`
	FlowBias       float64 `json:"flowBias"`
	FlowRecency    float64 `json:"flowRecency"` // minutes; 9999 when no relevant event

	DistanceToVWAP float64 `json:"distanceToVWAP"`
	ATR14          float64 `json:"atr14"`
	ATR714Ratio    float64 `json:"atr7_14_ratio"`
	IVRank         float64 `json:"ivRank"`
	IVSkew         float64 `json:"ivSkew"`
	PutCallRatio   float64 `json:"putCallRatio"`

	NetGex float64 `json:"netGex"`

	DayOfWeek float64 `json:"dayOfWeek"`
	DTE       float64 `json:"dte"`

	HistoricalWinRate   float64 `json:"historicalWinRate"`   // 0.5 when no history
	HistoricalTestCount float64 `json:"historicalTestCount"` // 0 when no history
	LastTestResult      float64 `json:"lastTestResult"`      // 1 held, 0 broke, -1 no history

	Probability float64 `json:"probability"`
}

// FeatureNames is the canonical ordering of the 25 features. Model weights
// are keyed by these names.
var FeatureNames = []string{
	"confluenceScore",
	"confluenceGex",
	"confluenceVwap",
	"confluenceCluster",
	"confluenceFlow",
	"confluenceProfile",
	"regimeType",
	"regimeCompatibility",
	"flowSweepCount",
	"flowVolume",
	"flowBias",
	"flowRecency",
	"distanceToVWAP",
	"atr14",
	"atr7_14_ratio",
	"ivRank",
	"ivSkew",
	"putCallRatio",
	"netGex",
	"dayOfWeek",
	"dte",
	"historicalWinRate",
	"historicalTestCount",
	"lastTestResult",
	"probability",
}

// Map returns the vector keyed by canonical feature name.
func (v FeatureVector) Map() map[string]float64 {
	return map[string]float64{
		"confluenceScore":     v.ConfluenceScore,
		"confluenceGex":       v.ConfluenceGex,
		"confluenceVwap":      v.ConfluenceVwap,
		"confluenceCluster":   v.ConfluenceCluster,
		"confluenceFlow":      v.ConfluenceFlow,
		"confluenceProfile":   v.ConfluenceProfile,
		"regimeType":          v.RegimeType,
		"regimeCompatibility": v.RegimeCompatibility,
		"flowSweepCount":      v.FlowSweepCount,
		"flowVolume":          v.FlowVolume,
		"flowBias":            v.FlowBias,
		"flowRecency":         v.FlowRecency,
		"distanceToVWAP":      v.DistanceToVWAP,
		"atr14":               v.ATR14,
		"atr7_14_ratio":       v.ATR714Ratio,
		"ivRank":              v.IVRank,
		"ivSkew":              v.IVSkew,
		"putCallRatio":        v.PutCallRatio,
		"netGex":              v.NetGex,
		"dayOfWeek":           v.DayOfWeek,
		"dte":                 v.DTE,
		"historicalWinRate":   v.HistoricalWinRate,
		"historicalTestCount": v.HistoricalTestCount,
		"lastTestResult":      v.LastTestResult,
		"probability":         v.Probability,
	}
}
