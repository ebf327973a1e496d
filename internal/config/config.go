package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the relay server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	MainPort    int    `yaml:"main_port"`
	ControlPort int    `yaml:"control_port"`

	// Observability
	MetricsAddress string `yaml:"metrics_address"` // empty disables the /metrics endpoint
	LogLevel       string `yaml:"log_level"`

	// Lobby
	ServerName     string `yaml:"server_name"`
	WelcomeMessage string `yaml:"welcome_message"`
	MaxUsers       int    `yaml:"max_users"`

	// Sessions
	SessionTimeout  time.Duration `yaml:"session_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// MainAddr returns the bind address for the main game socket.
func (s Server) MainAddr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.MainPort)
}

// ControlAddr returns the bind address for the control socket.
func (s Server) ControlAddr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.ControlPort)
}

// Default returns Server config with sensible defaults.
func Default() Server {
	return Server{
		BindAddress:     "0.0.0.0",
		MainPort:        8080,
		ControlPort:     27888,
		MetricsAddress:  "",
		LogLevel:        "info",
		ServerName:      "Kaillera Server",
		WelcomeMessage:  "Welcome!",
		MaxUsers:        100,
		SessionTimeout:  120 * time.Second,
		CleanupInterval: 3 * time.Second,
	}
}

// Load loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
