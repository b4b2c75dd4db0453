package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Supported values for LLM_PROVIDER.
const (
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Persona PersonaConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Persona: loadPersonaConfig(), Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// ark
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	// gemini (Vertex AI)
	GeminiProject         string
	GeminiLocation        string
	GeminiModel           string
	GeminiCredentialsFile string

	// openai
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	Temperature  *float64
	TopP         *float64
	TopK         *int
	MaxTokens    *int
	HistoryTurns int
}

// Enabled 表示当前 provider 是否提供了必需的凭证。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	case ProviderGemini:
		return c.GeminiProject != ""
	case ProviderOpenAI:
		return c.OpenAIKey != ""
	default:
		return false
	}
}

// MissingCredential names what has to be set for the selected provider.
func (c AIConfig) MissingCredential() string {
	switch c.Provider {
	case ProviderArk:
		return "ARK_API_KEY (or ARK_ACCESS_KEY + ARK_SECRET_KEY) and ARK_MODEL"
	case ProviderGemini:
		return "GOOGLE_CLOUD_PROJECT"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "LLM_PROVIDER"
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderArk))
	switch provider {
	case ProviderArk, ProviderGemini, ProviderOpenAI:
	default:
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		// 原始人设使用较低温度，回复更理性克制。
		val := 0.6
		temperature = &val
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	topK, err := parseOptionalIntEnv("LLM_TOP_K")
	if err != nil {
		return AIConfig{}, err
	}
	if topK == nil {
		val := 40
		topK = &val
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	historyTurns := 0
	if override, err := parseOptionalIntEnv("LLM_HISTORY_TURNS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		historyTurns = *override
	}

	arkModel := strings.TrimSpace(os.Getenv("ARK_MODEL"))
	if arkModel == "" {
		arkModel = strings.TrimSpace(os.Getenv("Model"))
	}

	return AIConfig{
		Provider:              provider,
		APIKey:                strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:             strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:             strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:                 arkModel,
		BaseURL:               getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:                getEnvOrDefault("ARK_REGION", "cn-beijing"),
		GeminiProject:         strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT")),
		GeminiLocation:        getEnvOrDefault("GOOGLE_CLOUD_LOCATION", "us-central1"),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiCredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		OpenAIKey:             strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:           getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:         strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Temperature:           temperature,
		TopP:                  topP,
		TopK:                  topK,
		MaxTokens:             maxTokens,
		HistoryTurns:          historyTurns,
	}, nil
}

// PersonaConfig 描述人设（系统指令与开场白）来源。
type PersonaConfig struct {
	File string
	ID   string
}

func loadPersonaConfig() PersonaConfig {
	return PersonaConfig{
		File: strings.TrimSpace(os.Getenv("PERSONA_FILE")),
		ID:   getEnvOrDefault("PERSONA_ID", "wise-mentor"),
	}
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() (LogConfig, error) {
	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json"))
	if format != "json" && format != "text" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: format,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
