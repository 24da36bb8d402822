package config

import "fmt"

// UnitConfig holds overrides for one crawl unit. Zero values leave the
// unit's own setting in place.
type UnitConfig struct {
	// StartingAddress replaces the unit's seed address.
	StartingAddress string `yaml:"startingAddress,omitempty"`

	// Concurrency replaces the unit's permit pool size.
	Concurrency int `yaml:"concurrency,omitempty"`

	// UserAgent replaces the unit's user agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Dedupe selects the skip-visited policy when true and the allow-revisit
	// policy when false. Nil keeps the unit's policy.
	Dedupe *bool `yaml:"dedupe,omitempty"`

	// RequestsPerSecond throttles the unit when positive.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`

	// Burst is the throttle burst size.
	Burst int `yaml:"burst,omitempty"`
}

// File is the structure of the .harvester configuration file.
type File struct {
	// Units maps unit names to their overrides.
	Units map[string]UnitConfig `yaml:"units,omitempty"`

	// Defaults applies to every unit unless the unit's entry overrides it.
	Defaults UnitConfig `yaml:"defaults,omitempty"`
}

// GetUnitConfig merges the defaults with the named unit's entry.
func (cf *File) GetUnitConfig(name string) UnitConfig {
	result := cf.Defaults

	uc, ok := cf.Units[name]
	if !ok {
		return result
	}
	if uc.StartingAddress != "" {
		result.StartingAddress = uc.StartingAddress
	}
	if uc.Concurrency != 0 {
		result.Concurrency = uc.Concurrency
	}
	if uc.UserAgent != "" {
		result.UserAgent = uc.UserAgent
	}
	if uc.Dedupe != nil {
		result.Dedupe = uc.Dedupe
	}
	if uc.RequestsPerSecond != 0 {
		result.RequestsPerSecond = uc.RequestsPerSecond
	}
	if uc.Burst != 0 {
		result.Burst = uc.Burst
	}
	return result
}

// Validate rejects negative values in the defaults and every unit entry.
func (cf *File) Validate() error {
	if err := cf.Defaults.validate("defaults"); err != nil {
		return err
	}
	for name, uc := range cf.Units {
		if err := uc.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (uc UnitConfig) validate(name string) error {
	switch {
	case uc.Concurrency < 0:
		return fmt.Errorf("%w: %s: concurrency must be non-negative", ErrInvalidUnitConfig, name)
	case uc.RequestsPerSecond < 0:
		return fmt.Errorf("%w: %s: requestsPerSecond must be non-negative", ErrInvalidUnitConfig, name)
	case uc.Burst < 0:
		return fmt.Errorf("%w: %s: burst must be non-negative", ErrInvalidUnitConfig, name)
	default:
		return nil
	}
}
