package config

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/MinoruSoga/tsunaguma-sub006/internal/pkg/env"
)

// PromoCodeConfig holds the promo code pool tuning knobs. It is built once at
// process start from the environment and passed explicitly into the promocode
// constructors.
type PromoCodeConfig struct {
	// CodeChars is the fixed character width of every generated code.
	CodeChars int `validate:"required,gt=0,lte=18"`
	// TargetTotal is the pool size replenishment aims for.
	TargetTotal int `validate:"required,gt=0"`
	// MaxTotal is the hard cap on the total pool size.
	MaxTotal int `validate:"required,gtefield=TargetTotal"`
	// Threshold triggers replenishment when the available count drops below it.
	Threshold int `validate:"required,gt=0,ltefield=TargetTotal"`
}

var validate = validator.New()

// LoadPromoCodeConfig reads the promo code settings from the environment.
func LoadPromoCodeConfig() (PromoCodeConfig, error) {
	cfg := PromoCodeConfig{
		CodeChars:   getEnvInt("PROMO_CODE_MASTER_CHARS", 8),
		TargetTotal: getEnvInt("PROMO_CODE_MASTER_TOTAL", 1000),
		MaxTotal:    getEnvInt("MAX_PROMO_CODE_MASTER_TOTAL", 100000),
		Threshold:   getEnvInt("THRESH_HOLD_PROMO_CODE", 100),
	}

	if err := cfg.Validate(); err != nil {
		return PromoCodeConfig{}, err
	}
	return cfg, nil
}

// Validate checks the config for internal consistency.
func (c PromoCodeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid promo code config: %w", err)
	}
	// The code space must be able to hold the hard cap.
	if space := c.CodeSpace(); space < int64(c.MaxTotal) {
		return fmt.Errorf("invalid promo code config: %d chars yield a code space of %d, below max pool size %d",
			c.CodeChars, space, c.MaxTotal)
	}
	return nil
}

// CodeSpace returns the number of distinct codes the configured width allows.
func (c PromoCodeConfig) CodeSpace() int64 {
	return int64(math.Pow10(c.CodeChars))
}

func getEnvInt(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
