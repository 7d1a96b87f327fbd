// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/ingest"
	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/spf13/viper"
)

// Config is the full application configuration as loaded by viper.
type Config struct {
	Companies      map[string]CompanySettings `mapstructure:"companies"`
	Sheets         SheetsSection            `mapstructure:"sheets"`
	Evaluation     EvaluationConfig         `mapstructure:"evaluation"`
	DataDir        string                   `mapstructure:"data_dir"`
	Logging        LoggingConfig            `mapstructure:"logging"`
	LLM            LLMConfig                `mapstructure:"llm"`
	Classification ClassificationConfig     `mapstructure:"classification"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig selects and tunes the classification provider.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	Model           string        `mapstructure:"model"`
	BaseURL         string        `mapstructure:"base_url"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
}

// ClassificationConfig tunes the vendor classifier.
type ClassificationConfig struct {
	Overrides           OverridesConfig `mapstructure:"overrides"`
	Workers             int             `mapstructure:"workers"`
	MaxDescriptions     int             `mapstructure:"max_descriptions"`
	MaxDescriptionsKept int             `mapstructure:"max_descriptions_kept"`
}

// OverridesConfig is the data behind the deterministic override rules.
type OverridesConfig struct {
	TeamKeywords []string         `mapstructure:"team_keywords"`
	KnownBars    []string         `mapstructure:"known_bars"`
	Retailers    []RetailerConfig `mapstructure:"retailers"`
}

// RetailerConfig maps a retailer name pattern to a fixed tier.
type RetailerConfig struct {
	Pattern string `mapstructure:"pattern"`
	Tier    int    `mapstructure:"tier"`
}

// EvaluationConfig locates the evaluation set source.
type EvaluationConfig struct {
	Source       string `mapstructure:"source"`
	Sheet        string `mapstructure:"sheet"`
	Output       string `mapstructure:"output"`
	BuildCompany string `mapstructure:"build_company"`
	DefaultTier  int    `mapstructure:"default_tier"`
}

// CompanySettings is one company's entry as written in the config file.
// Pointer fields distinguish unset from explicitly zero.
type CompanySettings struct {
	EvalSet    *bool        `mapstructure:"eval_set"`
	SkipRows   *int         `mapstructure:"skip_rows"`
	TypeFilter *string      `mapstructure:"type_filter"`
	Fields     FieldsConfig `mapstructure:"fields"`
	Filter     FilterConfig `mapstructure:"filter"`
	Name       string       `mapstructure:"name"`
	Input      string       `mapstructure:"input"`
	Location   string       `mapstructure:"location"`
	Columns    []string     `mapstructure:"columns"`
}

// CompanyConfig is a company's resolved settings with defaults applied.
type CompanyConfig struct {
	Fields     FieldsConfig
	Filter     FilterConfig
	ID         string
	Name       string
	Input      string
	Location   string
	TypeFilter string
	Columns    []string
	SkipRows   int
	EvalSet    bool
}

// FieldsConfig maps logical transaction fields to source column headers.
type FieldsConfig struct {
	Vendor      string `mapstructure:"vendor"`
	Description string `mapstructure:"description"`
	Amount      string `mapstructure:"amount"`
	Date        string `mapstructure:"date"`
	Type        string `mapstructure:"type"`
	Num         string `mapstructure:"num"`
	Account     string `mapstructure:"account"`
}

// FilterConfig keeps rows whose column contains any of the values.
type FilterConfig struct {
	Column string   `mapstructure:"column"`
	Values []string `mapstructure:"values"`
}

// SheetsSection holds the raw Google Sheets settings.
type SheetsSection struct {
	ServiceAccountPath string `mapstructure:"service_account_path"`
	ClientID           string `mapstructure:"client_id"`
	ClientSecret       string `mapstructure:"client_secret"`
	RefreshToken       string `mapstructure:"refresh_token"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SpreadsheetName    string `mapstructure:"spreadsheet_name"`
}

var companyIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Load decodes the configuration held by v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.DataDir = ExpandPath(cfg.DataDir)
	cfg.Evaluation.Source = ExpandPath(cfg.Evaluation.Source)
	cfg.Evaluation.Output = ExpandPath(cfg.Evaluation.Output)
	for id, company := range cfg.Companies {
		company.Input = ExpandPath(company.Input)
		cfg.Companies[id] = company
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the stages rely on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must be set", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if c.Classification.Workers < 1 {
		return fmt.Errorf("%w: classification.workers must be at least 1", common.ErrInvalidConfig)
	}
	if c.Classification.MaxDescriptions < 1 {
		return fmt.Errorf("%w: classification.max_descriptions must be at least 1", common.ErrInvalidConfig)
	}
	if c.Classification.MaxDescriptionsKept < c.Classification.MaxDescriptions {
		return fmt.Errorf("%w: classification.max_descriptions_kept must be at least max_descriptions", common.ErrInvalidConfig)
	}
	if c.LLM.MaxRetries < 1 {
		return fmt.Errorf("%w: llm.max_retries must be at least 1", common.ErrInvalidConfig)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("%w: llm.timeout must be positive", common.ErrInvalidConfig)
	}
	if !model.Tier(c.Evaluation.DefaultTier).Valid() {
		return fmt.Errorf("%w: evaluation.default_tier %d is not 0, 50, or 100", common.ErrInvalidConfig, c.Evaluation.DefaultTier)
	}
	for _, r := range c.Classification.Overrides.Retailers {
		if strings.TrimSpace(r.Pattern) == "" {
			return fmt.Errorf("%w: retailer override with empty pattern", common.ErrInvalidConfig)
		}
		if !model.Tier(r.Tier).Valid() {
			return fmt.Errorf("%w: retailer %q has tier %d, want 0, 50, or 100", common.ErrInvalidConfig, r.Pattern, r.Tier)
		}
	}
	for id, company := range c.Companies {
		if !companyIDPattern.MatchString(id) {
			return fmt.Errorf("%w: company id %q", common.ErrUnknownCompany, id)
		}
		if company.SkipRows != nil && *company.SkipRows < 0 {
			return fmt.Errorf("%w: company %s skip_rows cannot be negative", common.ErrInvalidConfig, id)
		}
	}
	return nil
}

// Company returns the resolved settings for id. Companies absent from the
// config use the default export layout.
func (c *Config) Company(id string) (CompanyConfig, error) {
	if !companyIDPattern.MatchString(id) {
		return CompanyConfig{}, fmt.Errorf("%w: %q", common.ErrUnknownCompany, id)
	}

	raw := c.Companies[strings.ToLower(id)]
	company := CompanyConfig{
		ID:         id,
		Name:       raw.Name,
		Input:      raw.Input,
		Location:   raw.Location,
		Columns:    raw.Columns,
		Filter:     raw.Filter,
		Fields:     raw.Fields.withDefaults(),
		SkipRows:   DefaultSkipRows,
		TypeFilter: DefaultTypeFilter,
		EvalSet:    true,
	}
	if company.Name == "" {
		company.Name = "Company " + id
	}
	if raw.SkipRows != nil {
		company.SkipRows = *raw.SkipRows
	}
	if raw.TypeFilter != nil {
		company.TypeFilter = *raw.TypeFilter
	}
	if raw.EvalSet != nil {
		company.EvalSet = *raw.EvalSet
	}
	return company, nil
}

func (f FieldsConfig) withDefaults() FieldsConfig {
	def := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return FieldsConfig{
		Vendor:      def(f.Vendor, ingest.ColumnName),
		Description: def(f.Description, ingest.ColumnDescription),
		Amount:      def(f.Amount, ingest.ColumnAmount),
		Date:        def(f.Date, ingest.ColumnDate),
		Type:        def(f.Type, ingest.ColumnType),
		Num:         def(f.Num, ingest.ColumnNum),
		Account:     def(f.Account, ingest.ColumnAccount),
	}
}
