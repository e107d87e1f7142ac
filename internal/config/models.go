package config

// LLMConfig selects the external analyzer provider.
type LLMConfig struct {
	Provider string
}

// OpenAIConfig configures the OpenAI analyzer.
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig configures the Google Gemini analyzer.
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig configures the Amazon Bedrock analyzer.
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// SMTPConfig configures the SMTP content filter gateway.
type SMTPConfig struct {
	Enabled          bool
	ListenAddress    string
	BlockPhishing    bool
	RelayAddress     string
	RelayPort        int
	RelayEnabled     bool
	SubjectPrefix    string
	ModifySubject    bool
	VerdictHeader    string
	ConfidenceHeader string
	IndicatorsHeader string
}

// HTTPConfig configures the HTTP/WebSocket gateway.
type HTTPConfig struct {
	Enabled       bool
	ListenAddress string
}

// GetLLM returns the analyzer provider configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetSMTP returns the SMTP filter configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:          c.GetBool("server.smtp.enabled"),
		ListenAddress:    c.GetString("server.smtp.listen_address"),
		BlockPhishing:    c.GetBool("server.smtp.block_phishing"),
		RelayAddress:     c.GetString("server.smtp.relay_address"),
		RelayPort:        c.GetInt("server.smtp.relay_port"),
		RelayEnabled:     c.GetBool("server.smtp.relay_enabled"),
		SubjectPrefix:    c.GetString("server.smtp.subject_prefix"),
		ModifySubject:    c.GetBool("server.smtp.modify_subject"),
		VerdictHeader:    c.GetString("server.smtp.headers.verdict"),
		ConfidenceHeader: c.GetString("server.smtp.headers.confidence"),
		IndicatorsHeader: c.GetString("server.smtp.headers.indicators"),
	}
}

// GetHTTP returns the HTTP gateway configuration
func (c *Config) GetHTTP() HTTPConfig {
	return HTTPConfig{
		Enabled:       c.GetBool("server.http.enabled"),
		ListenAddress: c.GetString("server.http.listen_address"),
	}
}
