package model

import "strings"

// Effect hints are named selections derived from the mood text. The renderer
// decides what they mean; nothing here computes curves or grades.

type KenBurns string

const (
	KenBurnsZoomIn   KenBurns = "zoom_in"
	KenBurnsZoomOut  KenBurns = "zoom_out"
	KenBurnsPanLeft  KenBurns = "pan_left"
	KenBurnsPanRight KenBurns = "pan_right"
	KenBurnsPanUp    KenBurns = "pan_up"
	KenBurnsPanDown  KenBurns = "pan_down"
)

type ColorGrade string

const (
	GradeNeutral ColorGrade = "neutral"
	GradeWarm    ColorGrade = "warm_orange"
	GradeCool    ColorGrade = "cool_blue"
	GradeDark    ColorGrade = "desaturated_dark"
	GradeVivid   ColorGrade = "saturated_vivid"
	GradePastel  ColorGrade = "soft_pastel"
)

type moodRule[T any] struct {
	words []string
	value T
}

func matchMood[T any](mood string, rules []moodRule[T], fallback T) T {
	m := strings.ToLower(mood)
	for _, r := range rules {
		for _, w := range r.words {
			if strings.Contains(m, w) {
				return r.value
			}
		}
	}
	return fallback
}

var kenBurnsRules = []moodRule[KenBurns]{
	{[]string{"epic", "grand", "triumphant", "powerful"}, KenBurnsZoomOut},
	{[]string{"intimate", "personal", "emotional", "tender"}, KenBurnsZoomIn},
	{[]string{"journey", "movement", "travel"}, KenBurnsPanRight},
	{[]string{"ascending", "hopeful", "rising"}, KenBurnsPanUp},
}

var gradeRules = []moodRule[ColorGrade]{
	{[]string{"warm", "nostalgic", "golden", "sunset"}, GradeWarm},
	{[]string{"cold", "melancholic", "sad", "lonely"}, GradeCool},
	{[]string{"dark", "mysterious", "ominous"}, GradeDark},
	{[]string{"vibrant", "energetic", "happy", "joyful"}, GradeVivid},
	{[]string{"dreamy", "ethereal", "surreal"}, GradePastel},
}

var transitionSpeedRules = []moodRule[float64]{
	{[]string{"energetic", "upbeat", "fast", "intense"}, 0.25},
	{[]string{"epic", "climactic", "powerful"}, 0.4},
	{[]string{"emotional", "intimate", "gentle", "tender"}, 1.0},
	{[]string{"dreamy", "ethereal", "peaceful"}, 1.5},
}

var kenBurnsIntensityRules = []moodRule[float64]{
	{[]string{"epic", "climactic", "intense"}, 0.15},
	{[]string{"energetic", "upbeat", "dynamic"}, 0.12},
	{[]string{"dreamy", "peaceful", "gentle"}, 0.05},
}

func KenBurnsForMood(mood string) KenBurns {
	return matchMood(mood, kenBurnsRules, KenBurnsZoomIn)
}

func ColorGradeForMood(mood string) ColorGrade {
	return matchMood(mood, gradeRules, GradeNeutral)
}

// TransitionSecondsForMood returns the cross-scene transition length, or def
// when the mood carries no pacing hint.
func TransitionSecondsForMood(mood string, def float64) float64 {
	return matchMood(mood, transitionSpeedRules, def)
}

func KenBurnsIntensityForMood(mood string) float64 {
	return matchMood(mood, kenBurnsIntensityRules, 0.08)
}
