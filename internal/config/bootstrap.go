package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"price-registry/internal/commission"
	"price-registry/internal/domain"
	"price-registry/internal/ident"
	"price-registry/internal/registry"
)

// Bootstrap is the YAML file that seeds a fresh registry and configures
// the spot source.
//
//	admin: 0x...
//	updater: 0x...
//	reporters: [0x..., 0x...]
//	settings:
//	  fiat_commission: 30
//	  token_commission: 50
//	  reward: 2000
//	spot:
//	  reference: USDC
//	  router: 0x...
//	  aliases:
//	    USDC: 0x...
type Bootstrap struct {
	Admin     string         `yaml:"admin"`
	Updater   string         `yaml:"updater"`
	Reporters []string       `yaml:"reporters"`
	Settings  SettingsConfig `yaml:"settings"`
	Spot      SpotConfig     `yaml:"spot"`
}

// SettingsConfig mirrors domain.Settings.
type SettingsConfig struct {
	FiatCommission  int64  `yaml:"fiat_commission"`
	TokenCommission int64  `yaml:"token_commission"`
	Reward          uint64 `yaml:"reward"`
}

// SpotConfig configures the spot price source.
type SpotConfig struct {
	Reference string            `yaml:"reference"`
	Router    string            `yaml:"router"`
	Aliases   map[string]string `yaml:"aliases"`
	// Quotes seeds the static source used when no RPC endpoint is set:
	// asset -> amount of Reference per whole unit.
	Quotes map[string]uint64 `yaml:"quotes"`
}

// LoadBootstrap reads and normalizes the bootstrap file at path.
func LoadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap: %w", err)
	}
	return ParseBootstrap(data)
}

// ParseBootstrap decodes and normalizes a bootstrap document. Unknown keys
// are rejected.
func ParseBootstrap(data []byte) (*Bootstrap, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var b Bootstrap
	if err := dec.Decode(&b); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode bootstrap: %w", err)
	}
	if err := b.Normalize(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Normalize canonicalizes identifiers and validates settings.
func (b *Bootstrap) Normalize() error {
	var err error

	if b.Admin == "" {
		return errors.New("bootstrap: admin is required")
	}
	if b.Admin, err = ident.NormalizeSigner(b.Admin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if b.Updater != "" {
		if b.Updater, err = ident.NormalizeSigner(b.Updater); err != nil {
			return fmt.Errorf("bootstrap updater: %w", err)
		}
	}
	if b.Reporters, err = ident.NormalizeAll(b.Reporters, ident.NormalizeSigner); err != nil {
		return fmt.Errorf("bootstrap reporters: %w", err)
	}

	if err := commission.ValidateCommission(b.Settings.FiatCommission); err != nil {
		return fmt.Errorf("bootstrap fiat_commission: %w", err)
	}
	if err := commission.ValidateCommission(b.Settings.TokenCommission); err != nil {
		return fmt.Errorf("bootstrap token_commission: %w", err)
	}
	if err := commission.ValidatePercent(b.Settings.Reward); err != nil {
		return fmt.Errorf("bootstrap reward: %w", err)
	}

	if b.Spot.Reference != "" {
		if b.Spot.Reference, err = ident.NormalizeAsset(b.Spot.Reference); err != nil {
			return fmt.Errorf("bootstrap spot reference: %w", err)
		}
	}
	if b.Spot.Router != "" {
		id, err := ident.Parse(b.Spot.Router)
		if err != nil || id.Kind != ident.KindEVM {
			return fmt.Errorf("bootstrap spot router %q: not an EVM address", b.Spot.Router)
		}
		b.Spot.Router = id.Value
	}
	aliases := make(map[string]string, len(b.Spot.Aliases))
	for name, addr := range b.Spot.Aliases {
		id, err := ident.Parse(addr)
		if err != nil || id.Kind != ident.KindEVM {
			return fmt.Errorf("bootstrap spot alias %s=%q: not an EVM address", name, addr)
		}
		aliases[name] = id.Value
	}
	b.Spot.Aliases = aliases

	quotes := make(map[string]uint64, len(b.Spot.Quotes))
	for asset, v := range b.Spot.Quotes {
		norm, err := ident.NormalizeAsset(asset)
		if err != nil {
			return fmt.Errorf("bootstrap spot quote %q: %w", asset, err)
		}
		quotes[norm] = v
	}
	b.Spot.Quotes = quotes

	return nil
}

// Registry returns the registry bootstrap.
func (b *Bootstrap) Registry() registry.Bootstrap {
	return registry.Bootstrap{
		Admin:     b.Admin,
		Updater:   b.Updater,
		Reporters: b.Reporters,
		Settings: domain.Settings{
			FiatCommission:  b.Settings.FiatCommission,
			TokenCommission: b.Settings.TokenCommission,
			Reward:          b.Settings.Reward,
		},
	}
}
