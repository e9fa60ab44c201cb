package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Board    BoardConfig    `toml:"board"`
	Identity IdentityConfig `toml:"identity"`
	Server   ServerConfig   `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string         `toml:"level"`
	DevFile DevFileLogging `toml:"dev_file"`
}

// DevFileLogging controls the logfmt file sink written only in dev mode.
type DevFileLogging struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type BoardConfig struct {
	Vocabulary             string  `toml:"vocabulary"`
	DragActivationDistance float64 `toml:"drag_activation_distance"`
	// StoreOverdue lets the sweep persist Overdue instead of deriving it at read time.
	StoreOverdue    bool `toml:"store_overdue"`
	ShowDescription bool `toml:"show_description"`
}

// IdentityConfig names the local member that CLI and TUI actions are attributed to.
type IdentityConfig struct {
	ActorID     string `toml:"actor_id"`
	DisplayName string `toml:"display_name"`
	Email       string `toml:"email"`
	Role        string `toml:"role"`
}

type ServerConfig struct {
	HTTPBind    string   `toml:"http_bind"`
	APIEndpoint string   `toml:"api_endpoint"`
	MCPEndpoint string   `toml:"mcp_endpoint"`
	CORSOrigins []string `toml:"cors_origins"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileLogging{
				Enabled: true,
				Dir:     ".tavla/log",
			},
		},
		Board: BoardConfig{
			Vocabulary:             domain.VocabularyDisplay,
			DragActivationDistance: board.DefaultActivationDistance,
			StoreOverdue:           false,
			ShowDescription:        true,
		},
		Identity: IdentityConfig{
			ActorID:     domain.LocalActorID,
			DisplayName: "Local User",
			Role:        string(domain.RoleAdmin),
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if level := strings.TrimSpace(c.Logging.Level); level != "" {
		if _, err := charmLog.ParseLevel(level); err != nil {
			return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
		}
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when logging.dev_file.enabled is true")
	}

	if _, err := domain.VocabularyByName(c.Board.Vocabulary); err != nil {
		return fmt.Errorf("invalid board.vocabulary: %q", c.Board.Vocabulary)
	}
	if c.Board.DragActivationDistance < 0 {
		return errors.New("board.drag_activation_distance must be >= 0")
	}

	if strings.TrimSpace(c.Identity.ActorID) == "" {
		return errors.New("identity.actor_id is required")
	}
	if _, err := domain.ParseRole(c.Identity.Role); err != nil {
		return fmt.Errorf("invalid identity.role: %q", c.Identity.Role)
	}

	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}
	for i, origin := range c.Server.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("server.cors_origins[%d] is empty", i)
		}
	}

	return nil
}

// Vocabulary resolves the configured board vocabulary.
func (c Config) Vocabulary() domain.Vocabulary {
	vocab, err := domain.VocabularyByName(c.Board.Vocabulary)
	if err != nil {
		return domain.DisplayVocabulary
	}
	return vocab
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
