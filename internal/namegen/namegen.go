// pattern: Functional Core

// Package namegen produces memorable branch names in adjective-noun
// form (swift-fox, quiet-moon). The worktree manager consumes it through
// a plain function value, so any generator can be substituted.
package namegen

import (
	"fmt"
	"math/rand"
)

var adjectives = []string{
	"swift", "quiet", "bright", "calm", "bold", "cool", "crisp", "deft",
	"fair", "fast", "firm", "fond", "free", "glad", "good", "grand",
	"great", "green", "happy", "keen", "kind", "late", "lean", "light",
	"live", "long", "loud", "mild", "neat", "new", "nice", "open",
	"plain", "prime", "pure", "quick", "rare", "real", "red", "rich",
	"ripe", "safe", "sharp", "short", "simple", "small", "smart", "smooth",
	"soft", "solid", "spare", "stable", "stark", "still", "strong", "sunny",
	"sure", "sweet", "tall", "tame", "tidy", "tight", "tiny", "true",
	"vast", "warm", "wide", "wild", "wise", "young", "able", "agile",
	"amber", "azure", "basic", "blank", "blue", "brave", "brief", "busy",
	"civic", "clean", "clear", "close", "cozy", "daily", "dark", "deep",
	"dense", "dual", "eager", "early", "easy", "equal", "exact", "extra",
}

var nouns = []string{
	"fox", "moon", "star", "tree", "wave", "bird", "bear", "deer",
	"fish", "hawk", "lake", "leaf", "lion", "lynx", "moth", "oak",
	"owl", "peak", "pine", "pond", "rain", "reef", "rock", "rose",
	"sand", "seal", "seed", "snow", "swan", "tide", "vale", "wind",
	"wing", "wolf", "wren", "arch", "bark", "beam", "bell", "bolt",
	"bond", "book", "brew", "cape", "card", "cave", "chip", "clay",
	"cliff", "code", "coin", "core", "cove", "crow", "cube", "dawn",
	"disk", "dome", "door", "dove", "drum", "dune", "dust", "edge",
	"fern", "flag", "foam", "fold", "font", "fork", "form", "fort",
	"frog", "gate", "gear", "glow", "gold", "grid", "hare", "helm",
	"herb", "hill", "hive", "hook", "horn", "jade", "kelp", "key",
	"kite", "knot", "lamp", "lane", "lark", "lens", "lime", "link",
}

// Generate returns a random adjective-noun name.
func Generate() string {
	return generate(rand.Intn)
}

func generate(intn func(int) int) string {
	return adjectives[intn(len(adjectives))] + "-" + nouns[intn(len(nouns))]
}

// Unique returns a name for which exists reports false. On collision it
// tries numeric suffixes -2 through -99 before drawing a fresh name.
func Unique(exists func(string) bool) string {
	return unique(rand.Intn, exists)
}

func unique(intn func(int) int, exists func(string) bool) string {
	base := generate(intn)
	if !exists(base) {
		return base
	}
	for i := 2; i < 100; i++ {
		name := fmt.Sprintf("%s-%d", base, i)
		if !exists(name) {
			return name
		}
	}
	return generate(intn)
}
