package model

// Level is the qualitative rating of a 0-100 score.
type Level string

// Score levels, best first.
const (
	LevelExcellent Level = "Excellent"
	LevelGood      Level = "Good"
	LevelFair      Level = "Fair"
	LevelPoor      Level = "Poor"
	LevelVeryPoor  Level = "Very Poor"
	LevelUnknown   Level = "Unknown"
)

// LevelBand is one tier of the level table: scores in [Min, Max) map to
// Level. The top band also includes its Max.
type LevelBand struct {
	Level Level
	Min   float64
	Max   float64
}

// LevelBands partitions [0, 100] into the five rating tiers. It is the single
// source of truth for scorer, chat and report rendering.
var LevelBands = []LevelBand{
	{Level: LevelExcellent, Min: 85, Max: 100},
	{Level: LevelGood, Min: 70, Max: 85},
	{Level: LevelFair, Min: 50, Max: 70},
	{Level: LevelPoor, Min: 30, Max: 50},
	{Level: LevelVeryPoor, Min: 0, Max: 30},
}

// LevelFor maps a score to its rating tier. Scores outside [0, 100] (or NaN)
// yield LevelUnknown.
func LevelFor(score float64) Level {
	if !(score >= 0 && score <= 100) {
		return LevelUnknown
	}
	for i, b := range LevelBands {
		if score >= b.Min && (score < b.Max || (i == 0 && score <= b.Max)) {
			return b.Level
		}
	}
	return LevelUnknown
}
