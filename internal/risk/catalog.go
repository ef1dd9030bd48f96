package risk

import "sort"

// Level is an operational risk severity from 1 (lowest) to 5 (highest).
type Level int

// Risk levels assigned by the condition catalog.
const (
	LevelMinimal Level = iota + 1
	LevelLow
	LevelModerate
	LevelHigh
	LevelSevere
)

// Valid reports whether l is one of the five catalog levels.
func (l Level) Valid() bool {
	return l >= LevelMinimal && l <= LevelSevere
}

// ConditionInfo describes how a provider weather code affects mining work.
type ConditionInfo struct {
	Description string `json:"description"`
	Level       Level  `json:"riskLevel"`
	Impact      string `json:"impact"`
}

// unknownCondition is returned for codes missing from the catalog.
var unknownCondition = ConditionInfo{
	Description: "Unknown Condition",
	Level:       LevelModerate,
	Impact:      "Requires Evaluation",
}

// conditions is keyed by WeatherAPI.com condition code. Read-only after init.
var conditions = map[int]ConditionInfo{
	1000: {"Sunny", LevelMinimal, "Optimal Conditions"},
	1003: {"Partly Cloudy", LevelMinimal, "Good Conditions"},
	1006: {"Cloudy", LevelLow, "Slightly Impacted"},
	1009: {"Overcast", LevelModerate, "Potential Disruption"},
	1030: {"Mist", LevelHigh, "High Risk"},
	1063: {"Patchy Rain Possible", LevelModerate, "Preparation Required"},
	1066: {"Patchy Snow Possible", LevelHigh, "Limited Operations"},
	1087: {"Thundery Outbreaks Possible", LevelSevere, "Cease Operations"},
	1114: {"Blowing Snow", LevelSevere, "Cease Operations"},
	1117: {"Blizzard", LevelSevere, "Cease Operations"},
	1135: {"Fog", LevelHigh, "High Risk"},
	1192: {"Heavy Rain at Times", LevelHigh, "Limited Operations"},
	1276: {"Moderate or Heavy Rain with Thunder", LevelSevere, "Cease Operations"},
}

// Lookup returns the catalog entry for code, or the "Unknown Condition"
// entry when the code is not mapped. It never fails.
func Lookup(code int) ConditionInfo {
	if info, ok := conditions[code]; ok {
		return info
	}
	return unknownCondition
}

// Codes returns every mapped weather code in ascending order.
func Codes() []int {
	codes := make([]int, 0, len(conditions))
	for code := range conditions {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}
