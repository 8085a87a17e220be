package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/subtrans/backend/internal/subtitle/translate"
)

type Config struct {
	// Translation
	Engine           string
	GeminiAPIKey     string
	GeminiModel      string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	DeepLAPIKey      string
	DeepLAPIURL      string
	TargetLang       string
	SourceLang       string
	BatchSize        int
	BatchConcurrency int
	LogDir           string
	LogLevel         string

	// Server
	Port          int
	MediaPath     string
	DataPath      string
	DBPath        string
	JWTSecret     string
	AdminUsername string
	AdminPassword string
	CORSOrigins   []string
}

// LoadEnvFile loads variables from a .env file without overriding the
// environment. A missing default file is not an error; a missing explicit
// path is.
func LoadEnvFile(path string) (bool, error) {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Load reads the configuration from the environment.
func Load(logger *zap.SugaredLogger) *Config {
	dataPath := getEnv("DATA_PATH", "/data")

	// JWT secret: require explicit setting or generate random
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			logger.Fatalw("failed to generate random JWT secret", "error", err)
		}
		jwtSecret = hex.EncodeToString(b)
		logger.Debugw("JWT_SECRET not set, using random secret; sessions will not survive restarts")
	}

	return &Config{
		Engine:           getEnv("TRANSLATE_ENGINE", translate.EngineGemini),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", translate.DefaultGeminiModel),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", translate.DefaultOpenAIModel),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		DeepLAPIKey:      os.Getenv("DEEPL_API_KEY"),
		DeepLAPIURL:      os.Getenv("DEEPL_API_URL"),
		TargetLang:       getEnv("TARGET_LANG", "pt-BR"),
		SourceLang:       getEnv("SOURCE_LANG", "auto"),
		BatchSize:        getEnvInt("BATCH_SIZE", translate.DefaultBatchSize, logger),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 1, logger),
		LogDir:           getEnv("LOG_DIR", "logs"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),

		Port:          getEnvInt("PORT", 8080, logger),
		MediaPath:     getEnv("MEDIA_PATH", "/media"),
		DataPath:      dataPath,
		DBPath:        getEnv("DB_PATH", filepath.Join(dataPath, "subtrans.db")),
		JWTSecret:     jwtSecret,
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

// EngineConfig returns the oracle settings for a run. resolver, when set,
// overrides GeminiModel at call time.
func (c *Config) EngineConfig(resolver translate.ModelResolver) translate.EngineConfig {
	return translate.EngineConfig{
		Engine:              c.Engine,
		GeminiAPIKey:        c.GeminiAPIKey,
		GeminiModel:         c.GeminiModel,
		GeminiModelResolver: resolver,
		OpenAIAPIKey:        c.OpenAIAPIKey,
		OpenAIModel:         c.OpenAIModel,
		OpenAIBaseURL:       c.OpenAIBaseURL,
		DeepLAPIKey:         c.DeepLAPIKey,
		DeepLAPIURL:         c.DeepLAPIURL,
		Prompt: translate.PromptOptions{
			SourceLang: c.SourceLang,
			TargetLang: c.TargetLang,
			Preset:     translate.PresetMovie,
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int, logger *zap.SugaredLogger) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		logger.Warnw("invalid integer setting, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

// splitList parses a comma-separated list, dropping empty items
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
