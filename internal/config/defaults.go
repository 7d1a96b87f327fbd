package config

import (
	"time"

	"github.com/Veraticus/spice-deduct/internal/ingest"
	"github.com/spf13/viper"
)

// Defaults shared with the stages that need them outside of viper.
const (
	DefaultSkipRows         = 3
	DefaultTypeFilter       = ingest.TypeExpense
	DefaultWorkers          = 4
	DefaultMaxDescriptions  = 3
	DefaultDescriptionsKept = 20
	DefaultEvalSheet        = "Eval Set"
)

// DefaultTeamKeywords mark a description as a team meal.
var DefaultTeamKeywords = []string{"team"}

// DefaultKnownBars are vendors that are always entertainment. The Soho
// House family are private members clubs.
var DefaultKnownBars = []string{
	"soho house", "soho ludlow", "soho works", "soho home",
	"bar", "pub", "lounge", "tavern", "club", "nightclub",
}

// DefaultRetailers are wholesale clubs whose purchases are food supplies.
var DefaultRetailers = []map[string]any{
	{"pattern": "costco", "tier": 50},
	{"pattern": "sams club", "tier": 50},
	{"pattern": "bjs wholesale", "tier": 50},
}

// SetDefaults registers every configuration default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.rate_limit", 500)

	v.SetDefault("classification.workers", DefaultWorkers)
	v.SetDefault("classification.max_descriptions", DefaultMaxDescriptions)
	v.SetDefault("classification.max_descriptions_kept", DefaultDescriptionsKept)
	v.SetDefault("classification.overrides.team_keywords", DefaultTeamKeywords)
	v.SetDefault("classification.overrides.known_bars", DefaultKnownBars)
	v.SetDefault("classification.overrides.retailers", DefaultRetailers)

	v.SetDefault("evaluation.source", "data/inputs/evaluation_set.yaml")
	v.SetDefault("evaluation.sheet", DefaultEvalSheet)
	v.SetDefault("evaluation.output", "")
	v.SetDefault("evaluation.default_tier", 0)
	v.SetDefault("evaluation.build_company", "")

	v.SetDefault("sheets.spreadsheet_name", "Deductible Expenses")
}
