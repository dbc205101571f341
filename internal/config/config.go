package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tonpool/tote/internal/formula"
	"github.com/tonpool/tote/internal/pricing"
)

type Config struct {
	Environment string           `yaml:"environment"`
	API         APIConfig        `yaml:"api"`
	Storage     StorageConfig    `yaml:"storage"`
	Redis       RedisConfig      `yaml:"redis"`
	NATS        NATSConfig       `yaml:"nats"`
	Draw        DrawConfig       `yaml:"draw"`
	Pricing     PricingConfig    `yaml:"pricing"`
	Payments    PaymentsConfig   `yaml:"payments"`
	Settlement  SettlementConfig `yaml:"settlement"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type StorageConfig struct {
	BadgerDir string `yaml:"badger_dir"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type NATSConfig struct {
	URL                 string `yaml:"url"`
	PaymentSubject      string `yaml:"payment_subject"`
	NotifySubjectPrefix string `yaml:"notify_subject_prefix"`
}

type DrawConfig struct {
	EventsCount int `yaml:"events_count"`
}

// PricingConfig holds money amounts as strings so they survive YAML without
// float drift; accessors convert to decimal.
type PricingConfig struct {
	BaseStake string `yaml:"base_stake"`
	Currency  string `yaml:"currency"`
	Policy    string `yaml:"policy"`
}

func (c PricingConfig) BaseStakeAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.BaseStake)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid base_stake %q: %w", c.BaseStake, err)
	}
	return d, nil
}

func (c PricingConfig) PricingPolicy() pricing.Policy {
	return pricing.Policy(c.Policy)
}

type PaymentsConfig struct {
	ReceiveAddress   string `yaml:"receive_address"`
	MinConfirmations int    `yaml:"min_confirmations"`
	AmountTolerance  string `yaml:"amount_tolerance"`
}

func (c PaymentsConfig) Tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.AmountTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount_tolerance %q: %w", c.AmountTolerance, err)
	}
	return d, nil
}

type SettlementConfig struct {
	Formula    string               `yaml:"formula"`
	EqualShare *EqualShareConfig    `yaml:"equal_share"`
	Tiered     *TieredWeightsConfig `yaml:"tiered_weights"`
	Fixed      *FixedTableConfig    `yaml:"fixed_table"`
}

type EqualShareConfig struct {
	PrizePoolPct        string `yaml:"prize_pool_pct"`
	RolloverIfNoWinners bool   `yaml:"rollover_if_no_winners"`
}

type TieredWeightsConfig struct {
	PrizePoolPct      string        `yaml:"prize_pool_pct"`
	Weights           map[int]int64 `yaml:"weights"`
	MinHits           int           `yaml:"min_hits"`
	RolloverUnclaimed bool          `yaml:"rollover_unclaimed"`
}

type FixedTableConfig struct {
	Fixed             map[int]string `yaml:"fixed"`
	RolloverUnclaimed bool           `yaml:"rollover_unclaimed"`
}

// FormulaParams converts the YAML parameter blocks into the engine's typed
// params. Only the blocks that are present convert; formula.New decides
// whether the one it needs exists.
func (c SettlementConfig) FormulaParams() (formula.Params, error) {
	var params formula.Params

	if c.EqualShare != nil {
		pct, err := decimal.NewFromString(c.EqualShare.PrizePoolPct)
		if err != nil {
			return params, fmt.Errorf("equal_share.prize_pool_pct %q: %w", c.EqualShare.PrizePoolPct, err)
		}
		params.EqualShare = &formula.EqualShareParams{
			PrizePoolPct:        pct,
			RolloverIfNoWinners: c.EqualShare.RolloverIfNoWinners,
		}
	}

	if c.Tiered != nil {
		pct, err := decimal.NewFromString(c.Tiered.PrizePoolPct)
		if err != nil {
			return params, fmt.Errorf("tiered_weights.prize_pool_pct %q: %w", c.Tiered.PrizePoolPct, err)
		}
		params.Tiered = &formula.TieredParams{
			PrizePoolPct:      pct,
			Weights:           c.Tiered.Weights,
			MinHits:           c.Tiered.MinHits,
			RolloverUnclaimed: c.Tiered.RolloverUnclaimed,
		}
	}

	if c.Fixed != nil {
		fixed := make(map[int]decimal.Decimal, len(c.Fixed.Fixed))
		for level, amount := range c.Fixed.Fixed {
			d, err := decimal.NewFromString(amount)
			if err != nil {
				return params, fmt.Errorf("fixed_table.fixed[%d] %q: %w", level, amount, err)
			}
			fixed[level] = d
		}
		params.Fixed = &formula.FixedTableParams{
			Fixed:             fixed,
			RolloverUnclaimed: c.Fixed.RolloverUnclaimed,
		}
	}

	return params, nil
}

// RolloverEnabled reports whether the selected formula carries leftover into
// the next draw's bank.
func (c SettlementConfig) RolloverEnabled() bool {
	switch formula.Name(c.Formula) {
	case formula.MaxHitsEqualShare:
		return c.EqualShare != nil && c.EqualShare.RolloverIfNoWinners
	case formula.TieredWeights:
		return c.Tiered != nil && c.Tiered.RolloverUnclaimed
	case formula.FixedTable:
		return c.Fixed != nil && c.Fixed.RolloverUnclaimed
	}
	return false
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	// Set defaults
	if config.API.ListenAddr == "" {
		config.API.ListenAddr = ":8080"
	}
	if config.Storage.BadgerDir == "" {
		config.Storage.BadgerDir = "data/badger"
	}
	if config.Redis.SessionTTL == 0 {
		config.Redis.SessionTTL = time.Hour
	}
	if config.NATS.PaymentSubject == "" {
		config.NATS.PaymentSubject = "indexer.transfer.confirmed"
	}
	if config.NATS.NotifySubjectPrefix == "" {
		config.NATS.NotifySubjectPrefix = "tote"
	}
	if config.Draw.EventsCount == 0 {
		config.Draw.EventsCount = 15
	}
	if config.Pricing.Policy == "" {
		config.Pricing.Policy = string(pricing.PolicyStrict)
	}
	if config.Payments.MinConfirmations == 0 {
		config.Payments.MinConfirmations = 1
	}
	if config.Payments.AmountTolerance == "" {
		config.Payments.AmountTolerance = "0.001"
	}

	if !config.Pricing.PricingPolicy().Valid() {
		return nil, fmt.Errorf("unknown pricing policy %q", config.Pricing.Policy)
	}
	if config.Pricing.Currency == "" {
		return nil, fmt.Errorf("pricing.currency is required")
	}
	if _, err := config.Pricing.BaseStakeAmount(); err != nil {
		return nil, err
	}

	return &config, nil
}
