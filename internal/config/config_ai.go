package config

// Operation groups. Each group has its own model settings and circuit breaker.
const (
	OperationJobAd     = "jobAd"
	OperationInterview = "interview"
	OperationSuggest   = "suggest"
)

// OperationForKind maps an artifact or suggestion kind to its operation group
func OperationForKind(kind string) string {
	switch kind {
	case "job_ad":
		return OperationJobAd
	case "interview_prep", "onboarding":
		return OperationInterview
	default:
		return OperationSuggest
	}
}

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Endpoint == "" {
		opCfg.Endpoint = c.AI.Endpoint
	}
	if opCfg.BaseURL == "" {
		opCfg.BaseURL = c.AI.BaseURL
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.ContextSize == nil {
		opCfg.ContextSize = &c.AI.ContextSize
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
	if opCfg.SanitizeInput == nil {
		opCfg.SanitizeInput = &c.AI.SanitizeInput
	}
	if opCfg.TokenEstimator == "" {
		opCfg.TokenEstimator = c.AI.TokenEstimator
	}
}

// GetJobAdConfig returns the AI configuration for job ads with fallback to global config
func (c *Config) GetJobAdConfig() OperationAIConfig {
	config := c.AI.JobAd
	c.applyOperationDefaults(&config)
	return config
}

// GetInterviewConfig returns the AI configuration for interview guides and
// onboarding plans with fallback to global config
func (c *Config) GetInterviewConfig() OperationAIConfig {
	config := c.AI.Interview
	c.applyOperationDefaults(&config)
	return config
}

// GetSuggestConfig returns the AI configuration for suggestion lists with fallback to global config
func (c *Config) GetSuggestConfig() OperationAIConfig {
	config := c.AI.Suggest
	c.applyOperationDefaults(&config)
	return config
}

// GetOperationConfig returns the resolved configuration of an operation group
func (c *Config) GetOperationConfig(operation string) OperationAIConfig {
	switch operation {
	case OperationJobAd:
		return c.GetJobAdConfig()
	case OperationInterview:
		return c.GetInterviewConfig()
	default:
		return c.GetSuggestConfig()
	}
}

// operationTemplates returns the raw template overrides of an operation group
func (c *Config) operationTemplates(operation string) PromptConfig {
	switch operation {
	case OperationJobAd:
		return c.AI.JobAd.Templates
	case OperationInterview:
		return c.AI.Interview.Templates
	default:
		return c.AI.Suggest.Templates
	}
}

// TemplateFor returns the configured prompt template for kind, or "" when
// the built-in default should be used. Lookup order: operation file,
// operation inline, global file, global inline.
func (c *Config) TemplateFor(kind string) string {
	operation := OperationForKind(kind)
	if c.Templates != nil {
		if t, ok := c.Templates.Get(operation, kind); ok {
			return t
		}
	}
	if t := c.operationTemplates(operation).Inline[kind]; t != "" {
		return t
	}
	if c.Templates != nil {
		if t, ok := c.Templates.Get(GlobalScope, kind); ok {
			return t
		}
	}
	return c.AI.Templates.Inline[kind]
}
