package config

// QualityTier controls the model selection trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderOpenAI  ProviderType = "openai"
	ProviderOllama  ProviderType = "ollama"
	ProviderMiniMax ProviderType = "minimax"
)

// Config is the top-level service configuration, corresponding to .prograin-agent.yml.
type Config struct {
	Provider            ProviderType `yaml:"provider" koanf:"provider"`
	Model               string       `yaml:"model" koanf:"model"`
	Quality             QualityTier  `yaml:"quality" koanf:"quality"`
	Port                int          `yaml:"port" koanf:"port"`
	DataDir             string       `yaml:"data_dir" koanf:"data_dir"`
	SharedSecret        string       `yaml:"shared_secret" koanf:"shared_secret"`
	DefaultLanguage     string       `yaml:"default_language" koanf:"default_language"`
	ProviderTimeoutSecs int          `yaml:"provider_timeout_secs" koanf:"provider_timeout_secs"`
	ProviderRPM         int          `yaml:"provider_rpm" koanf:"provider_rpm"`
	AllowAllOrigins     bool         `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
