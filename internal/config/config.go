package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
)

// Config models renewmart.yml.
type Config struct {
	Marketplace struct {
		Name string `yaml:"name"`
	} `yaml:"marketplace"`
	Roles struct {
		Catalog map[string]RoleInfo `yaml:"catalog"`
	} `yaml:"roles"`
	Documents struct {
		// Defaults is the system-wide fallback table: document type -> role
		// keys allowed to see it. Per-land overrides live in the database
		// and replace (never supplement) this table when present.
		Defaults map[string][]string `yaml:"defaults"`
		// Slots names parallel document tracks per type (e.g. D1/D2).
		Slots map[string][]string `yaml:"slots"`
	} `yaml:"documents"`
	Progress struct {
		CountUnassignedRoles bool `yaml:"count_unassigned_roles"`
	} `yaml:"progress"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type RoleInfo struct {
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from the workspace, falling back to the
// built-in defaults when no file exists.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Marketplace.Name == "" {
		return fmt.Errorf("config.marketplace.name is required")
	}
	for _, role := range review.Roles() {
		if _, ok := c.Roles.Catalog[string(role)]; !ok {
			return fmt.Errorf("config.roles.catalog must include %s", role)
		}
	}
	for roleKey := range c.Roles.Catalog {
		if !review.KnownRole(review.RoleKey(roleKey)) {
			return fmt.Errorf("config.roles.catalog contains unknown role %s", roleKey)
		}
	}
	for docType, roles := range c.Documents.Defaults {
		if docType == "" {
			return fmt.Errorf("config.documents.defaults has empty document type")
		}
		if len(roles) == 0 {
			return fmt.Errorf("document type %s maps to no roles", docType)
		}
		for _, r := range roles {
			if !review.KnownRole(review.RoleKey(r)) {
				return fmt.Errorf("document type %s references unknown role %s", docType, r)
			}
		}
	}
	for docType, slots := range c.Documents.Slots {
		if _, ok := c.Documents.Defaults[docType]; !ok {
			return fmt.Errorf("slots defined for unknown document type %s", docType)
		}
		for _, slot := range slots {
			if slot == "" {
				return fmt.Errorf("document type %s has empty slot name", docType)
			}
		}
	}
	return nil
}

// DefaultMapping returns the fallback visibility table in the resolver's
// shape.
func (c *Config) DefaultMapping() review.Mapping {
	m := make(review.Mapping, len(c.Documents.Defaults))
	for docType, roles := range c.Documents.Defaults {
		m[docType] = append([]string(nil), roles...)
	}
	return m
}

// Policy returns the named aggregation policy from config.
func (c *Config) Policy() review.AggregationPolicy {
	return review.AggregationPolicy{CountUnassignedRoles: c.Progress.CountUnassignedRoles}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "renewmart.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	cfg.Marketplace.Name = "renewmart"
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `marketplace:
  name: renewmart

roles:
  catalog:
    re_sales_advisor:
      label: "Sales Advisor"
      description: "Market fit, pricing, and buyer outreach"
    re_analyst:
      label: "Analyst"
      description: "Technical and financial due diligence"
    re_governance_lead:
      label: "Governance Lead"
      description: "Regulatory, legal, and compliance review"

documents:
  defaults:
    land_deed: [re_sales_advisor, re_governance_lead]
    site_survey: [re_analyst]
    grid_study: [re_analyst]
    financial_model: [re_analyst, re_sales_advisor]
    permit_clearance: [re_governance_lead]
    environmental_assessment: [re_analyst, re_governance_lead]
  slots:
    grid_study: [D1, D2]
    environmental_assessment: [D1, D2]

progress:
  count_unassigned_roles: true
`
