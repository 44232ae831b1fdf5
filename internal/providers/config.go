package providers

import "time"

// Model tiers offered by the backend.
const (
	ModelFast     = "gpt-3.5-turbo"
	ModelBalanced = "gpt-4o-mini"
	ModelQuality  = "gpt-4o"

	DefaultModel   = ModelBalanced
	DefaultTimeout = 60 * time.Second
)

// Params are the sampling parameters sent with a completion.
type Params struct {
	Temperature      float32
	MaxTokens        int
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

// OperationConfig overrides parameters for one operation. Zero values keep
// the built-in setting.
type OperationConfig struct {
	Temperature  *float32
	MaxTokens    int
	SystemPrompt string
}

// Config configures a completion client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Operations map[Operation]OperationConfig
}

var defaultParams = Params{
	Temperature: 0.7,
	MaxTokens:   1000,
	TopP:        1.0,
}

var operationParams = map[Operation]Params{
	OpDescribe:   {Temperature: 0.8, MaxTokens: 500},
	OpCategorize: {Temperature: 0.3, MaxTokens: 50},
	OpEstimate:   {Temperature: 0.2, MaxTokens: 100},
	OpAudit:      {Temperature: 0.6, MaxTokens: 800},
}

var systemPrompts = map[Operation]string{
	OpDescribe: "You are an expert software project manager. " +
		"Write a clear, detailed description for the development task you are given. " +
		"The description must be specific, technical and action oriented. " +
		"Reply with the description only, without extra explanation.",

	OpCategorize: "You classify software development tasks. " +
		"Assign each task exactly one of these categories: " +
		"Frontend, Backend, Testing, DevOps, Database, Documentation, Security, Performance, Bug Fix, Feature. " +
		"Reply with the category name only, nothing else.",

	OpEstimate: "You are an expert in effort estimation for software development. " +
		"Estimate the hours needed to complete the task, considering technical complexity, " +
		"dependencies, required testing and documentation. " +
		"Reply with a whole number of hours only.",

	OpAudit: "You are a risk analysis specialist for software projects. " +
		"Identify the potential risks in the task you are given. " +
		"Return only the RISK ANALYSIS, without any mitigation plan or extra explanation.",

	OpMitigation: "You are a risk mitigation specialist for software projects. " +
		"You will receive a risk analysis. " +
		"Propose a detailed, specific MITIGATION PLAN for each risk it identifies. " +
		"Return only the mitigation plan, without repeating the analysis or adding extra explanation.",
}

// DefaultConfig returns a Config with the default model and timeout and no
// credentials.
func DefaultConfig() Config {
	return Config{
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// ParamsFor returns the sampling parameters for op: defaults, then the
// built-in operation settings, then any configured override.
func (c Config) ParamsFor(op Operation) Params {
	p := defaultParams
	if built, ok := operationParams[op]; ok {
		p.Temperature = built.Temperature
		p.MaxTokens = built.MaxTokens
	}
	if override, ok := c.Operations[op]; ok {
		if override.Temperature != nil {
			p.Temperature = *override.Temperature
		}
		if override.MaxTokens > 0 {
			p.MaxTokens = override.MaxTokens
		}
	}
	return p
}

// SystemPrompt returns the system prompt for op, honoring overrides.
func (c Config) SystemPrompt(op Operation) string {
	if override, ok := c.Operations[op]; ok && override.SystemPrompt != "" {
		return override.SystemPrompt
	}
	return systemPrompts[op]
}

func (c Config) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Status describes how the AI backend is configured.
type Status struct {
	Configured          bool        `json:"configured"`
	APIKeyPresent       bool        `json:"api_key_present"`
	DefaultModel        string      `json:"default_model"`
	AvailableModels     []string    `json:"available_models"`
	OperationsSupported []Operation `json:"operations_supported"`
}

// StatusOf reports the configuration state of c.
func StatusOf(c Config) Status {
	hasKey := c.APIKey != ""
	return Status{
		Configured:          hasKey,
		APIKeyPresent:       hasKey,
		DefaultModel:        c.model(),
		AvailableModels:     []string{ModelFast, ModelBalanced, ModelQuality},
		OperationsSupported: Operations(),
	}
}

// tokenCosts are USD per 1K tokens.
var tokenCosts = map[string]struct{ input, output float64 }{
	ModelFast:     {0.0015, 0.002},
	ModelBalanced: {0.00015, 0.0006},
	ModelQuality:  {0.03, 0.06},
}

// Cost estimates the USD cost of a call. Unknown models cost 0.
func Cost(model string, inputTokens, outputTokens int) float64 {
	c, ok := tokenCosts[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000*c.input + float64(outputTokens)/1000*c.output
}
