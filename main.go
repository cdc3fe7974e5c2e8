package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"mergetool/logger"
	"mergetool/types"

	"github.com/BurntSushi/toml"
)

const configEnv = "MERGETOOL_CONFIG"

type Config struct {
	NsID                   int    `json:"ns_id" toml:"ns_id"`
	LogLevel               string `json:"log_level" toml:"log_level"` // trace, debug, info, warn, error
	MaxComputationTimeMs   int    `json:"max_computation_time_ms" toml:"max_computation_time_ms"`
	IgnoreTrimWhitespace   bool   `json:"ignore_trim_whitespace" toml:"ignore_trim_whitespace"`
	DebugImmediateShutdown bool   `json:"debug_immediate_shutdown" toml:"debug_immediate_shutdown"`
	IdleShutdownSeconds    int    `json:"idle_shutdown_seconds" toml:"idle_shutdown_seconds"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:             "info",
		MaxComputationTimeMs: int(types.DefaultMaxComputationTime.Milliseconds()),
		IdleShutdownSeconds:  30,
	}
}

// DiffOptions returns the default options for diff requests
func (c Config) DiffOptions() types.DiffOptions {
	return types.DiffOptions{
		MaxComputationTimeMs: c.MaxComputationTimeMs,
		IgnoreTrimWhitespace: c.IgnoreTrimWhitespace,
	}
}

type ServerMode string

const (
	ModeDaemon ServerMode = "daemon"
	ModeClient ServerMode = "client"
)

// execPath returns name in the directory of the executable
func execPath(name string) string {
	exe, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Join(filepath.Dir(exe), name)
}

// Setup logger to log to a file in the same directory as the executable
// Caller must defer logger.Close()
func setupLogger(logLevel string) *logger.LimitedLogger {
	f, err := os.OpenFile(execPath("mergetool.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}

	limitedLogger := logger.NewLimitedLogger(f, logger.ParseLogLevel(logLevel))
	log.SetOutput(limitedLogger)
	return limitedLogger
}

func getSocketPath() string { return execPath("mergetool.sock") }

func getPidPath() string { return execPath("mergetool.pid") }

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

// parseConfig layers the JSON in envJSON over the TOML file at tomlPath over
// the defaults. A missing file and an empty envJSON are skipped.
func parseConfig(tomlPath, envJSON string) (Config, error) {
	config := defaultConfig()

	if _, err := toml.DecodeFile(tomlPath, &config); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("config file %s: %w", tomlPath, err)
	}
	if envJSON != "" {
		if err := json.Unmarshal([]byte(envJSON), &config); err != nil {
			return config, fmt.Errorf("%s: %w", configEnv, err)
		}
	}

	if config.IdleShutdownSeconds <= 0 {
		config.IdleShutdownSeconds = defaultConfig().IdleShutdownSeconds
	}
	if err := config.DiffOptions().Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func loadConfig() Config {
	config, err := parseConfig(execPath("mergetool.toml"), os.Getenv(configEnv))
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return config
}

func runDaemon() {
	config := loadConfig()

	logger := setupLogger(config.LogLevel)
	defer logger.Close()
	log.Printf("config: %+v", config)

	daemon, err := NewDaemon(config)
	if err != nil {
		log.Fatalf("error creating daemon: %v", err)
	}

	if err := daemon.Start(); err != nil {
		log.Fatalf("error starting daemon: %v", err)
	}
}

func runClient() {
	client := NewClient()

	if err := client.EnsureDaemonRunning(); err != nil {
		log.Fatalf("error ensuring daemon is running: %v", err)
	}

	if err := client.Connect(); err != nil {
		log.Fatalf("error connecting to daemon: %v", err)
	}
}

func main() {
	var mode ServerMode = ModeClient

	if len(os.Args) > 1 && os.Args[1] == "--daemon" {
		mode = ModeDaemon
	}

	switch mode {
	case ModeDaemon:
		runDaemon()
	case ModeClient:
		runClient()
	}
}
