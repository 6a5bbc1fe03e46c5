package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            string `json:"port" yaml:"port"`
	SchemaDir       string `json:"schemaDir" yaml:"schemaDir"` // *.dsl с описанием сущностей
	SeedDir         string `json:"seedDir" yaml:"seedDir"`     // YAML-фикстуры; пусто — без сидов
	DBURL           string `json:"dbUrl" yaml:"dbUrl"`
	AutoMigrate     bool   `json:"autoMigrate" yaml:"autoMigrate"` // create table if not exists по схеме
	MaxIncludeDepth int    `json:"maxIncludeDepth" yaml:"maxIncludeDepth"`
	LogLevel        string `json:"logLevel" yaml:"logLevel"`
}

func def() Config {
	return Config{
		Port:            "8080",
		SchemaDir:       "dsl",
		SeedDir:         "",
		DBURL:           "",
		AutoMigrate:     false,
		MaxIncludeDepth: 3,
		LogLevel:        "info",
	}
}

// loadFile читает JSON или YAML по расширению поверх значений по умолчанию.
func loadFile(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &c)
	default:
		err = json.Unmarshal(b, &c)
	}
	if err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

// LoadWithPath собирает конфиг слоями: значения по умолчанию, файл
// (если существует), .env и ENTREPO_* из окружения, затем флаги из args.
func LoadWithPath(path string, args []string) (Config, error) {
	cfg := def()

	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		c2, err := loadFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = c2
	}

	// .env не перекрывает уже выставленные переменные окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf(".env: %w", err)
	}

	// ENV overrides
	cfg.Port = getenv("ENTREPO_PORT", cfg.Port)
	cfg.SchemaDir = getenv("ENTREPO_SCHEMA_DIR", cfg.SchemaDir)
	cfg.SeedDir = getenv("ENTREPO_SEED_DIR", cfg.SeedDir)
	cfg.DBURL = getenv("ENTREPO_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("ENTREPO_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.MaxIncludeDepth = getenvInt("ENTREPO_MAX_INCLUDE_DEPTH", cfg.MaxIncludeDepth)
	cfg.LogLevel = getenv("ENTREPO_LOG_LEVEL", cfg.LogLevel)

	// Flags overrides
	fset := flag.NewFlagSet("entrepo", flag.ContinueOnError)
	configPath := fset.String("config", path, "Path to config file (JSON or YAML)")
	port := fset.String("port", cfg.Port, "HTTP port")
	schemaDir := fset.String("schema", cfg.SchemaDir, "Path to DSL directory")
	seedDir := fset.String("seed", cfg.SeedDir, "Path to YAML fixtures (empty = no seeding)")
	db := fset.String("db", cfg.DBURL, "Postgres URL")
	auto := fset.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Create missing tables on start (true/false)")
	depth := fset.Int("max-include-depth", cfg.MaxIncludeDepth, "Maximum nesting of include")
	level := fset.String("log-level", cfg.LogLevel, "Log level (debug/info/warn/error)")

	if err := fset.Parse(args); err != nil {
		return cfg, err
	}

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != path {
		return LoadWithPath(*configPath, args)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.SchemaDir = strings.TrimSpace(*schemaDir)
	cfg.SeedDir = strings.TrimSpace(*seedDir)
	cfg.DBURL = strings.TrimSpace(*db)
	if b, ok := parseBool(*auto); ok {
		cfg.AutoMigrate = b
	} else {
		return cfg, fmt.Errorf("auto-migrate: expected true/false, got %q", *auto)
	}
	cfg.MaxIncludeDepth = *depth
	cfg.LogLevel = strings.TrimSpace(*level)

	return cfg, nil
}
