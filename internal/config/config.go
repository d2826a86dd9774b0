package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	DataAPI   DataAPIConfig
	Assistant AssistantConfig
	Pending   PendingConfig
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

	dataAPI, err := loadDataAPIConfig()
	if err != nil {
		return nil, err
	}

	assistant, err := loadAssistantConfig()
	if err != nil {
		return nil, err
	}

	pending, err := loadPendingConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, DataAPI: dataAPI, Assistant: assistant, Pending: pending}, nil
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

// AIConfig 描述大模型相关配置。APIKeys 按顺序组成凭证池。
type AIConfig struct {
	APIKeys     []string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && len(c.APIKeys) > 0
}

// NewChatModel 使用给定的 API Key 创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context, apiKey string) (model.ChatModel, error) {
	if c.Model == "" || strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，需要 ARK_API_KEYS + Model")
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
		APIKey:      apiKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	keys := parseListEnv("ARK_API_KEYS")
	if len(keys) == 0 {
		keys = parseListEnv("ARK_API_KEY")
	}

	return AIConfig{
		APIKeys:     keys,
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// DataAPIConfig 描述外部数据 API（活动、票务、分类）。
type DataAPIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func loadDataAPIConfig() (DataAPIConfig, error) {
	timeout, err := parseDurationEnv("DATA_API_TIMEOUT", 10*time.Second)
	if err != nil {
		return DataAPIConfig{}, err
	}

	return DataAPIConfig{
		BaseURL: strings.TrimRight(getEnvOrDefault("DATA_API_BASE_URL", "http://localhost:5000/api"), "/"),
		Token:   strings.TrimSpace(os.Getenv("DATA_API_TOKEN")),
		Timeout: timeout,
	}, nil
}

// AssistantConfig 控制缓存与知识同步的时间参数。
type AssistantConfig struct {
	CacheTTL        time.Duration
	SweepInterval   time.Duration
	KnowledgeMaxAge time.Duration
	GenerateTimeout time.Duration
}

func loadAssistantConfig() (AssistantConfig, error) {
	cacheTTL, err := parseDurationEnv("ASSISTANT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return AssistantConfig{}, err
	}

	sweep, err := parseDurationEnv("ASSISTANT_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return AssistantConfig{}, err
	}

	maxAge, err := parseDurationEnv("ASSISTANT_KNOWLEDGE_MAX_AGE", 60*time.Second)
	if err != nil {
		return AssistantConfig{}, err
	}

	generateTimeout, err := parseDurationEnv("ASSISTANT_GENERATE_TIMEOUT", 45*time.Second)
	if err != nil {
		return AssistantConfig{}, err
	}

	return AssistantConfig{
		CacheTTL:        cacheTTL,
		SweepInterval:   sweep,
		KnowledgeMaxAge: maxAge,
		GenerateTimeout: generateTimeout,
	}, nil
}

// PendingConfig 选择待处理导航的存储后端。
type PendingConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

func loadPendingConfig() (PendingConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("PENDING_STORE", "memory"))
	if backend != "memory" && backend != "redis" {
		return PendingConfig{}, fmt.Errorf("invalid PENDING_STORE value %q", backend)
	}

	db := 0
	if override, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return PendingConfig{}, err
	} else if override != nil {
		db = *override
	}

	ttl, err := parseDurationEnv("PENDING_TTL", 30*time.Minute)
	if err != nil {
		return PendingConfig{}, err
	}

	return PendingConfig{
		Backend:       backend,
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       db,
		TTL:           ttl,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
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
