// Package config provides Viper-based configuration loading for the tactics rules service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/game/initiative"
	"github.com/cory-johannsen/tactics/internal/game/roster"
)

// EnvPrefix prefixes every environment override, e.g. TACTICS_DATABASE_HOST.
const EnvPrefix = "TACTICS"

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Mode is "authority" for the process owning encounters or "replica" for a read mirror.
	Mode string `mapstructure:"mode"`
	// Name identifies this process in logs.
	Name string `mapstructure:"name"`
	// TickInterval paces an authority: every tick plays one turn of each hosted encounter.
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds the snapshot replication transport settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Prefix namespaces snapshot keys and channels.
	Prefix string `mapstructure:"prefix"`
	// SnapshotTTL expires stored snapshots; zero keeps them.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EncounterConfig holds the turn economy and rule enforcement settings.
type EncounterConfig struct {
	ActionPointsPerTurn   int    `mapstructure:"action_points_per_turn"`
	ReactionPointsPerTurn int    `mapstructure:"reaction_points_per_turn"`
	RosterCapacity        int    `mapstructure:"roster_capacity"`
	InitiativeTieBreak    string `mapstructure:"initiative_tie_break"`
	// StrictContracts panics on contract violations instead of logging them.
	StrictContracts bool `mapstructure:"strict_contracts"`
	// TurnTimeout ends an overrunning turn; zero disables the timer.
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
}

// Settings converts the configuration into encounter settings.
//
// Precondition: the configuration has passed Validate.
func (e EncounterConfig) Settings() encounter.Settings {
	tb, _ := initiative.ParseTieBreak(e.InitiativeTieBreak)
	return encounter.Settings{
		ActionPointsPerTurn:   e.ActionPointsPerTurn,
		ReactionPointsPerTurn: e.ReactionPointsPerTurn,
		RosterCapacity:        e.RosterCapacity,
		TieBreak:              tb,
		TurnTimeout:           e.TurnTimeout,
	}
}

// ContentConfig locates the YAML and Lua content directories.
type ContentConfig struct {
	AbilitiesDir  string `mapstructure:"abilities_dir"`
	ConditionsDir string `mapstructure:"conditions_dir"`
	CharactersDir string `mapstructure:"characters_dir"`
	AIDir         string `mapstructure:"ai_dir"`
	ScriptsDir    string `mapstructure:"scripts_dir"`
	// ScenariosDir holds the encounters an authority hosts at startup.
	ScenariosDir string `mapstructure:"scenarios_dir"`
	// ScriptInstructionLimit bounds each Lua hook call; zero is unlimited.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// GRPCConfig holds the health endpoint settings.
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Encounter EncounterConfig `mapstructure:"encounter"`
	Content   ContentConfig   `mapstructure:"content"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateServer(c.Server),
		validateDatabase(c.Database),
		validateRedis(c.Redis),
		validateLogging(c.Logging),
		validateEncounter(c.Encounter),
		validateContent(c.Content),
		validateGRPC(c.GRPC),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	validModes := map[string]bool{"authority": true, "replica": true}
	if !validModes[s.Mode] {
		errs = append(errs, fmt.Sprintf("server.mode must be one of [authority, replica], got %q", s.Mode))
	}
	if s.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if s.Mode == "authority" && s.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("server.tick_interval must be > 0 for an authority, got %s", s.TickInterval))
	}
	return joined(errs)
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joined(errs)
}

func validateRedis(r RedisConfig) error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 || r.DB > 15 {
		errs = append(errs, fmt.Sprintf("redis.db must be 0-15, got %d", r.DB))
	}
	if r.Prefix == "" {
		errs = append(errs, "redis.prefix must not be empty")
	}
	if r.SnapshotTTL < 0 {
		errs = append(errs, "redis.snapshot_ttl must not be negative")
	}
	return joined(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateEncounter(e EncounterConfig) error {
	var errs []string
	if e.ActionPointsPerTurn < 0 {
		errs = append(errs, fmt.Sprintf("encounter.action_points_per_turn must be >= 0, got %d", e.ActionPointsPerTurn))
	}
	if e.ReactionPointsPerTurn < 0 {
		errs = append(errs, fmt.Sprintf("encounter.reaction_points_per_turn must be >= 0, got %d", e.ReactionPointsPerTurn))
	}
	if e.RosterCapacity < 1 || e.RosterCapacity > roster.MaxCapacity {
		errs = append(errs, fmt.Sprintf("encounter.roster_capacity must be 1-%d, got %d", roster.MaxCapacity, e.RosterCapacity))
	}
	if _, err := initiative.ParseTieBreak(e.InitiativeTieBreak); err != nil {
		errs = append(errs, fmt.Sprintf("encounter.initiative_tie_break: %v", err))
	}
	if e.TurnTimeout < 0 {
		errs = append(errs, "encounter.turn_timeout must not be negative")
	}
	return joined(errs)
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.AbilitiesDir == "" {
		errs = append(errs, "content.abilities_dir must not be empty")
	}
	if c.CharactersDir == "" {
		errs = append(errs, "content.characters_dir must not be empty")
	}
	if c.ScriptInstructionLimit < 0 {
		errs = append(errs, "content.script_instruction_limit must be >= 0")
	}
	return joined(errs)
}

func validateGRPC(g GRPCConfig) error {
	var errs []string
	if g.Host == "" {
		errs = append(errs, "grpc.host must not be empty")
	}
	if g.Port < 1 || g.Port > 65535 {
		errs = append(errs, fmt.Sprintf("grpc.port must be 1-65535, got %d", g.Port))
	}
	return joined(errs)
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and TACTICS_ environment overrides applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "authority")
	v.SetDefault("server.name", "rulesd")
	v.SetDefault("server.tick_interval", "2s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tactics")
	v.SetDefault("database.password", "tactics")
	v.SetDefault("database.name", "tactics")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "tactics:encounter")
	v.SetDefault("redis.snapshot_ttl", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("encounter.action_points_per_turn", 3)
	v.SetDefault("encounter.reaction_points_per_turn", 1)
	v.SetDefault("encounter.roster_capacity", 32)
	v.SetDefault("encounter.initiative_tie_break", "insertion")
	v.SetDefault("encounter.strict_contracts", false)
	v.SetDefault("encounter.turn_timeout", "0s")

	v.SetDefault("content.abilities_dir", "content/abilities")
	v.SetDefault("content.conditions_dir", "content/conditions")
	v.SetDefault("content.characters_dir", "content/characters")
	v.SetDefault("content.ai_dir", "content/ai")
	v.SetDefault("content.scripts_dir", "content/scripts")
	v.SetDefault("content.scenarios_dir", "content/scenarios")
	v.SetDefault("content.script_instruction_limit", 100000)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
}
