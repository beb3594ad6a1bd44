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
	"github.com/sirupsen/logrus"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Search  SearchConfig
	Store   StoreConfig
	Auth    AuthConfig
	Trigger TriggerConfig
	Jobs    JobsConfig
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

	search, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	jobs, err := loadJobsConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Search:  search,
		Store:   store,
		Auth:    auth,
		Trigger: TriggerConfig{PhrasesFile: strings.TrimSpace(os.Getenv("TRIGGER_PHRASES_FILE"))},
		Jobs:    jobs,
		Log:     logCfg,
	}, nil
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
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// 打断台词生成参数
	RebuttalTemperature float32
	RebuttalMaxTokens   int
	// 创始人反应分类参数
	ReactionTemperature float32
	ReactionMaxTokens   int
	// 报告生成参数
	ReportTemperature float32
	ReportMaxTokens   int
	// 辅导对话参数
	MentorTemperature float32
	MentorMaxTokens   int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
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

	rebuttalTemp, err := floatOrDefault("AI_REBUTTAL_TEMPERATURE", 0.8)
	if err != nil {
		return AIConfig{}, err
	}
	rebuttalTokens, err := intOrDefault("AI_REBUTTAL_MAX_TOKENS", 150)
	if err != nil {
		return AIConfig{}, err
	}
	reactionTemp, err := floatOrDefault("AI_REACTION_TEMPERATURE", 0.3)
	if err != nil {
		return AIConfig{}, err
	}
	reactionTokens, err := intOrDefault("AI_REACTION_MAX_TOKENS", 10)
	if err != nil {
		return AIConfig{}, err
	}
	reportTemp, err := floatOrDefault("AI_REPORT_TEMPERATURE", 0.4)
	if err != nil {
		return AIConfig{}, err
	}
	reportTokens, err := intOrDefault("AI_REPORT_MAX_TOKENS", 1024)
	if err != nil {
		return AIConfig{}, err
	}
	mentorTemp, err := floatOrDefault("AI_MENTOR_TEMPERATURE", 0.7)
	if err != nil {
		return AIConfig{}, err
	}
	mentorTokens, err := intOrDefault("AI_MENTOR_MAX_TOKENS", 400)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:              strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:           strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:           strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:               strings.TrimSpace(os.Getenv("Model")),
		BaseURL:             getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:              getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:         temperature,
		TopP:                topP,
		MaxTokens:           maxTokens,
		RebuttalTemperature: float32(rebuttalTemp),
		RebuttalMaxTokens:   rebuttalTokens,
		ReactionTemperature: float32(reactionTemp),
		ReactionMaxTokens:   reactionTokens,
		ReportTemperature:   float32(reportTemp),
		ReportMaxTokens:     reportTokens,
		MentorTemperature:   float32(mentorTemp),
		MentorMaxTokens:     mentorTokens,
	}, nil
}

// SearchConfig 描述 Tavily 检索配置。
type SearchConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Enabled 表示是否配置了检索密钥。
func (c SearchConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadSearchConfig() (SearchConfig, error) {
	timeout, err := intOrDefault("TAVILY_TIMEOUT", 20)
	if err != nil {
		return SearchConfig{}, err
	}
	if timeout <= 0 {
		return SearchConfig{}, fmt.Errorf("invalid TAVILY_TIMEOUT value: %d", timeout)
	}

	return SearchConfig{
		APIKey:  strings.TrimSpace(os.Getenv("TAVILY_API_KEY")),
		BaseURL: getEnvOrDefault("TAVILY_BASE_URL", "https://api.tavily.com"),
		Timeout: time.Duration(timeout) * time.Second,
	}, nil
}

// StoreDriver 选择持久化实现。
type StoreDriver string

const (
	StoreMemory StoreDriver = "memory"
	StoreSQLite StoreDriver = "sqlite"
)

// StoreConfig 描述存储配置。
type StoreConfig struct {
	Driver StoreDriver
	DSN    string
}

func loadStoreConfig() (StoreConfig, error) {
	driver := StoreDriver(strings.ToLower(getEnvOrDefault("STORE_DRIVER", string(StoreMemory))))
	switch driver {
	case StoreMemory, StoreSQLite:
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value: %q", driver)
	}

	return StoreConfig{
		Driver: driver,
		DSN:    getEnvOrDefault("STORE_DSN", "hotseat.db"),
	}, nil
}

// AuthMode 选择身份解析方式。
type AuthMode string

const (
	// AuthHeader 信任上游网关注入的用户头。
	AuthHeader AuthMode = "header"
	// AuthNone 所有请求都映射到固定测试用户，仅用于本地开发。
	AuthNone AuthMode = "noauth"
)

// AuthConfig 描述身份解析配置。
type AuthConfig struct {
	Mode       AuthMode
	UserHeader string
	TestUser   string
}

func loadAuthConfig() (AuthConfig, error) {
	mode := AuthMode(strings.ToLower(getEnvOrDefault("AUTH_MODE", string(AuthHeader))))
	switch mode {
	case AuthHeader, AuthNone:
	default:
		return AuthConfig{}, fmt.Errorf("invalid AUTH_MODE value: %q", mode)
	}

	return AuthConfig{
		Mode:       mode,
		UserHeader: getEnvOrDefault("AUTH_USER_HEADER", "X-User-ID"),
		TestUser:   getEnvOrDefault("AUTH_TEST_USER", "test-user"),
	}, nil
}

// TriggerConfig 描述触发短语表来源。
type TriggerConfig struct {
	PhrasesFile string
}

// JobsConfig 描述后台任务配置。
type JobsConfig struct {
	Timeout time.Duration
}

func loadJobsConfig() (JobsConfig, error) {
	timeout, err := intOrDefault("JOB_TIMEOUT", 120)
	if err != nil {
		return JobsConfig{}, err
	}
	if timeout <= 0 {
		return JobsConfig{}, fmt.Errorf("invalid JOB_TIMEOUT value: %d", timeout)
	}
	return JobsConfig{Timeout: time.Duration(timeout) * time.Second}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  logrus.Level
	Format string
}

// Apply 将日志配置写入全局 logrus。
func (c LogConfig) Apply() {
	logrus.SetLevel(c.Level)
	if c.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func loadLogConfig() (LogConfig, error) {
	level, err := logrus.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value: %w", err)
	}

	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value: %q", format)
	}
	return LogConfig{Level: level, Format: format}, nil
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

func floatOrDefault(key string, defaultValue float64) (float64, error) {
	val, err := parseOptionalFloatEnv(key)
	if err != nil || val == nil {
		return defaultValue, err
	}
	return *val, nil
}

func intOrDefault(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil || val == nil {
		return defaultValue, err
	}
	return *val, nil
}
