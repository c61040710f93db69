package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Upload UploadConfig `toml:"upload"`
	Auth   AuthConfig   `toml:"auth"`
	LLM    LLMConfig    `toml:"llm"`
	KPI    KPIConfig    `toml:"kpi"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int    `toml:"port"`
	DevMode     bool   `toml:"dev_mode"`
	CORSOrigins string `toml:"cors_origins"` // 逗号分隔，"*" 表示任意来源
	PowerBIMode string `toml:"powerbi_mode"` // offline / online
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
	DBFile  string `toml:"db_file"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	MaxBytes    int64 `toml:"max_bytes"`
	PreviewRows int   `toml:"preview_rows"`
}

// AuthConfig 演示登录配置
type AuthConfig struct {
	JWTSecret         string `toml:"jwt_secret"`
	TokenTTLMinutes   int    `toml:"token_ttl_minutes"`
	DemoAdminPassword string `toml:"demo_admin_password"`
}

// LLMConfig 文本生成服务配置
type LLMConfig struct {
	Provider       string `toml:"provider"` // openai / gemini
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// KPIConfig 指标配置
type KPIConfig struct {
	PowerTariffRsKWh float64 `toml:"power_tariff_rs_kwh"`
	DefaultStart     string  `toml:"default_start"`
	DefaultEnd       string  `toml:"default_end"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	FileFound     bool
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        8001,
			DevMode:     false,
			CORSOrigins: "*",
			PowerBIMode: "offline",
		},
		Data: DataConfig{
			DataDir: "data",
			DBFile:  "star_cement.db",
		},
		Upload: UploadConfig{
			MaxBytes:    50 * 1024 * 1024,
			PreviewRows: 5,
		},
		Auth: AuthConfig{
			JWTSecret:         "star-cement-secret-key",
			TokenTTLMinutes:   480,
			DemoAdminPassword: "Demo1234!",
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			BaseURL:        "https://api.openai.com/v1",
			TimeoutSeconds: 60,
			MaxRetries:     1,
		},
		KPI: KPIConfig{
			PowerTariffRsKWh: 7.0,
			DefaultStart:     "2024-01-01",
			DefaultEnd:       "2025-12-31",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultConfigPath 默认配置文件路径（可执行文件同目录下的 config.toml）
func DefaultConfigPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, "config.toml")
}

// Load 从指定路径加载配置；path 为空时使用默认路径。
// 文件不存在时返回默认配置。
func Load(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	info := LoadConfigInfo{Path: path}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, info, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		info.FileFound = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, info, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, info, nil
}

// applyEnv 环境变量覆盖
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("APP_DEMO_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.DemoAdminPassword = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = v
	}
	if v := os.Getenv("NEXT_PUBLIC_DEMO_MODE"); v != "" {
		cfg.Server.PowerBIMode = v
	}
	if v := os.Getenv("STARKPI_DATA_DIR"); v != "" {
		cfg.Data.DataDir = v
	}

	// API Key：按提供方取对应环境变量，EMERGENT_LLM_KEY 兜底
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "gemini":
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("EMERGENT_LLM_KEY")
	}
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Data.DBFile == "" {
		return fmt.Errorf("data.db_file is required")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be 'openai' or 'gemini', got %q", c.LLM.Provider)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be non-negative")
	}
	for _, d := range []string{c.KPI.DefaultStart, c.KPI.DefaultEnd} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("kpi default date %q: %w", d, err)
		}
	}
	return nil
}

// TokenTTL 令牌有效期
func (c *AppConfig) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// LLMTimeout 单次文本生成调用超时
func (c *AppConfig) LLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// CORSOriginList 拆分允许的来源
func (c *AppConfig) CORSOriginList() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// SaveConfig 保存配置到指定路径
func SaveConfig(config *AppConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir 确保数据目录存在，返回绝对路径。
// 相对路径以可执行文件目录为基准。
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := config.Data.DataDir
	if !filepath.IsAbs(dataDir) {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		dataDir = filepath.Join(exeDir, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Join(dataDir, "reports"), 0755); err != nil {
		return "", err
	}

	return dataDir, nil
}

// DBPath 数仓文件路径
func DBPath(config *AppConfig) (string, error) {
	dataDir, err := EnsureDataDir(config)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, config.Data.DBFile), nil
}
