package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Validation rule parameters
	Validation ValidationConfig `yaml:"validation"`

	// Item table parsing heuristics
	Items ItemsConfig `yaml:"items"`

	// LLM field completion (optional collaborator)
	LLM LLMConfig `yaml:"llm"`

	// Knowledge base sidecar (optional collaborator)
	KnowledgeBase KBConfig `yaml:"knowledge_base"`
}

// ValidationConfig holds the tunable bounds of the business rules.
// Zero values are replaced by DIAN defaults at load time.
type ValidationConfig struct {
	MaxAgeYears        int       `yaml:"max_age_years"`        // default 5
	TaxRateCeiling     float64   `yaml:"tax_rate_ceiling"`     // default 0.19
	TaxRateSlack       float64   `yaml:"tax_rate_slack"`       // default 0.005
	StandardTaxRates   []float64 `yaml:"standard_tax_rates"`   // default 0, 0.05, 0.19
	TotalTolerance     float64   `yaml:"total_tolerance"`      // default 0.01 of total
	ItemsTolerance     float64   `yaml:"items_tolerance"`      // default 0.02 of subtotal
	ItemsMinMargin     float64   `yaml:"items_min_margin"`     // default 1.00 absolute
	WithholdingMaxRate float64   `yaml:"withholding_max_rate"` // default 0.15
	MaxPaymentTermDays int       `yaml:"max_payment_term_days"` // default 180
}

// ItemsConfig controls the tie-break for item lines carrying several
// numbers. The positional heuristic is deliberately configurable.
type ItemsConfig struct {
	MaxDescriptionLines int `yaml:"max_description_lines"` // default 5
	NumberWindowLines   int `yaml:"number_window_lines"`   // default 8
}

// LLMConfig mirrors the provider layout: one section per backend plus a
// default selector. An empty default disables field completion entirely.
type LLMConfig struct {
	DefaultProvider string `yaml:"default_provider"` // "openai", "gemini", "ollama" or ""

	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ollama OllamaConfig `yaml:"ollama"`
}

// OpenAIConfig for OpenAI / compatible endpoints
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // default "http://localhost:11434"
	Model   string `yaml:"model"`
}

// KBConfig points at the retrieval sidecar used by rules 7 and 10.
type KBConfig struct {
	BaseURL string `yaml:"base_url"`
	TopK    int    `yaml:"top_k"` // default 3
}

// ApplyDefaults fills unset validation and parsing parameters.
func (c *Config) ApplyDefaults() {
	v := &c.Validation
	if v.MaxAgeYears == 0 {
		v.MaxAgeYears = 5
	}
	if v.TaxRateCeiling == 0 {
		v.TaxRateCeiling = 0.19
	}
	if v.TaxRateSlack == 0 {
		v.TaxRateSlack = 0.005
	}
	if len(v.StandardTaxRates) == 0 {
		v.StandardTaxRates = []float64{0, 0.05, 0.19}
	}
	if v.TotalTolerance == 0 {
		v.TotalTolerance = 0.01
	}
	if v.ItemsTolerance == 0 {
		v.ItemsTolerance = 0.02
	}
	if v.ItemsMinMargin == 0 {
		v.ItemsMinMargin = 1.0
	}
	if v.WithholdingMaxRate == 0 {
		v.WithholdingMaxRate = 0.15
	}
	if v.MaxPaymentTermDays == 0 {
		v.MaxPaymentTermDays = 180
	}

	if c.Items.MaxDescriptionLines == 0 {
		c.Items.MaxDescriptionLines = 5
	}
	if c.Items.NumberWindowLines == 0 {
		c.Items.NumberWindowLines = 8
	}

	if c.KnowledgeBase.TopK == 0 {
		c.KnowledgeBase.TopK = 3
	}
}
