package memory

const (
	scoreBase          = 0.5
	significantTypeAdd = 0.2
	strongEmotionAdd   = 0.15
	rareItemAdd        = 0.15
	standoutAdd        = 0.1
	streakAdd          = 0.1
	streakThreshold    = 5
)

var significantTypes = map[Type]bool{
	TypeAchievement: true,
	TypeMilestone:   true,
	TypeFirstTime:   true,
	TypeDramatic:    true,
}

var strongEmotions = map[string]bool{
	"amazed":     true,
	"excited":    true,
	"angry":      true,
	"frustrated": true,
	"grateful":   true,
}

var rareRarities = map[string]bool{
	"legendary": true,
	"epic":      true,
}

// Score derives an importance weight in [0,1] from the event's features.
// Additive bonuses over a base, clamped at 1.0. Unknown types, emotions,
// and context keys contribute nothing.
func Score(t Type, emotion string, ctx Context) float64 {
	score := scoreBase

	if significantTypes[t] {
		score += significantTypeAdd
	}

	if strongEmotions[emotion] {
		score += strongEmotionAdd
	}

	if rareRarities[ctx.String(ContextRarity)] {
		score += rareItemAdd
	}

	if ctx.Bool(ContextMVP) || ctx.Bool(ContextIsLegendary) {
		score += standoutAdd
	}

	if ctx.Int(ContextWinStreak) >= streakThreshold || ctx.Int(ContextLossStreak) >= streakThreshold {
		score += streakAdd
	}

	if score > 1.0 {
		score = 1.0
	}

	return score
}
