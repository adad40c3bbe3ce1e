package promocode

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/config"
)

// MaxTry bounds the number of generation rounds. With a healthy code space a
// single round is enough; the bound only matters when the space is nearly
// exhausted.
const MaxTry = 50

// GenerateResult holds the outcome of one generation call. Codes may be
// shorter than requested when the retry budget ran out; that is not an error,
// the caller reports the shortfall.
type GenerateResult struct {
	Codes []string
	Tries int
}

// Generator produces batches of unique fixed-width promo codes. It is a pure
// function over its inputs plus the injected randomness source and never
// touches persistence.
type Generator struct {
	chars    int
	maxTotal int64
	rnd      *rand.Rand
}

// NewGenerator creates a generator for the configured code width. Pass a
// seeded rand for deterministic output, or nil for a time-seeded one.
func NewGenerator(cfg config.PromoCodeConfig, rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{
		chars:    cfg.CodeChars,
		maxTotal: cfg.CodeSpace(),
		rnd:      rnd,
	}
}

// Generate produces up to total codes, none of which collide with each other
// or with the excluded set. Each round draws only the still-missing count, so
// effort stays proportional to the deficit.
func (g *Generator) Generate(total int, excluded map[string]struct{}) GenerateResult {
	result := GenerateResult{Codes: []string{}}
	if total <= 0 {
		return result
	}

	// Local membership set, seeded from the caller's exclusion set. The
	// caller's map is never mutated.
	used := make(map[string]struct{}, len(excluded)+total)
	for code := range excluded {
		used[code] = struct{}{}
	}

	for result.Tries < MaxTry && len(result.Codes) < total {
		result.Tries++
		remaining := total - len(result.Codes)
		for i := 0; i < remaining; i++ {
			code := g.formatCode(g.rnd.Int63n(g.maxTotal))
			if _, taken := used[code]; taken {
				continue
			}
			used[code] = struct{}{}
			result.Codes = append(result.Codes, code)
		}
	}

	return result
}

// formatCode renders a draw from [0, maxTotal) as a zero-padded decimal
// string. Swapping to an alphanumeric rendering only needs to keep the output
// width fixed and the mapping injective.
func (g *Generator) formatCode(n int64) string {
	return fmt.Sprintf("%0*d", g.chars, n)
}
