package risk

import "sort"

// RecommendationCount is the number of hours that received a recommendation.
type RecommendationCount struct {
	Recommendation string `json:"recommendation"`
	Level          Level  `json:"riskLevel"`
	Hours          int    `json:"hours"`
}

// LevelCount is the number of hours assessed at a risk level.
type LevelCount struct {
	Level Level `json:"riskLevel"`
	Hours int   `json:"hours"`
}

// Summary aggregates a run of assessments.
type Summary struct {
	TotalHours      int                   `json:"totalHours"`
	Recommendations []RecommendationCount `json:"recommendations"`
	Distribution    []LevelCount          `json:"distribution"`
	MaxLevel        Level                 `json:"maxRiskLevel"`
}

// Summarize counts hours per recommendation and per level. Recommendations
// are ordered by hours descending, ties broken by ascending level, and only
// those that occurred are listed. Distribution always covers levels 1..5.
// MaxLevel is 0 for an empty run.
func Summarize(assessments []Assessment) Summary {
	s := Summary{TotalHours: len(assessments)}

	perLevel := make(map[Level]int, 5)
	perRec := make(map[string]*RecommendationCount)
	for _, a := range assessments {
		perLevel[a.Level]++
		if a.Level > s.MaxLevel {
			s.MaxLevel = a.Level
		}
		rc, ok := perRec[a.Recommendation]
		if !ok {
			rc = &RecommendationCount{Recommendation: a.Recommendation, Level: a.Level}
			perRec[a.Recommendation] = rc
		}
		rc.Hours++
	}

	s.Recommendations = make([]RecommendationCount, 0, len(perRec))
	for _, rc := range perRec {
		s.Recommendations = append(s.Recommendations, *rc)
	}
	sort.Slice(s.Recommendations, func(i, j int) bool {
		a, b := s.Recommendations[i], s.Recommendations[j]
		if a.Hours != b.Hours {
			return a.Hours > b.Hours
		}
		return a.Level < b.Level
	})

	s.Distribution = make([]LevelCount, 0, 5)
	for l := LevelMinimal; l <= LevelSevere; l++ {
		s.Distribution = append(s.Distribution, LevelCount{Level: l, Hours: perLevel[l]})
	}
	return s
}
