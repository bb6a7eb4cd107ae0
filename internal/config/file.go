package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML overlay. Only keys present in the file override
// the environment.
type fileConfig struct {
	Ledger struct {
		Backend        string `yaml:"backend"`
		Path           string `yaml:"path"`
		InitialBalance string `yaml:"initial_balance"`
	} `yaml:"ledger"`

	LLM struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"llm"`

	Rates struct {
		Providers []string          `yaml:"providers"`
		URLs      map[string]string `yaml:"urls"`
		Static    map[string]string `yaml:"static"`
	} `yaml:"rates"`
}

// ApplyFile overlays the YAML file at path onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Ledger.Backend != "" {
		c.LedgerBackend = strings.ToLower(fc.Ledger.Backend)
	}
	if fc.Ledger.Path != "" {
		c.LedgerPath = fc.Ledger.Path
	}
	if fc.Ledger.InitialBalance != "" {
		d, err := decimal.NewFromString(fc.Ledger.InitialBalance)
		if err != nil {
			return fmt.Errorf("config file %s: ledger.initial_balance: %w", path, err)
		}
		c.InitialBalance = d
	}

	if fc.LLM.Provider != "" {
		c.LLMProvider = strings.ToLower(fc.LLM.Provider)
	}
	if fc.LLM.Model != "" {
		c.LLMModel = fc.LLM.Model
	}
	if fc.LLM.BaseURL != "" {
		c.LLMBaseURL = fc.LLM.BaseURL
	}

	if fc.Rates.Providers != nil {
		c.RateProviders = fc.Rates.Providers
	}
	if len(fc.Rates.URLs) > 0 {
		c.RateURLs = fc.Rates.URLs
	}
	if len(fc.Rates.Static) > 0 {
		c.StaticRates = fc.Rates.Static
	}

	c.ConfigFile = path
	return nil
}
