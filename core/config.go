package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultCloudBaseURL is the production backend. It is normalized with
	// APIPathSuffix before use; never hit it without the suffix.
	DefaultCloudBaseURL = "https://api.mbg.sekolah.id"

	// APIPathSuffix is appended to every resolved base URL exactly once.
	APIPathSuffix = "/api/v1"

	// DefaultLocalPort is the port a school edge server listens on when the
	// stored local host carries no port of its own.
	DefaultLocalPort = 8000
)

type (
	Config struct {
		Env     string
		Debug   bool
		AppName string
		Build   string

		// DataDir is where the file-backed store keeps its blobs.
		DataDir string

		SessionKey   string
		CloudBaseURL string
		HTTPTimeout  time.Duration

		RollbarToken string

		Agent AgentConfig
	}

	AgentConfig struct {
		SyncInterval time.Duration
		StatusAddr   string
		// TriesWarnThreshold is the tries count past which the agent starts
		// logging a queued item as possibly stuck. Items are never dropped.
		TriesWarnThreshold int
	}
)

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "MBG Client")
	v.SetDefault("build", "dev")
	v.SetDefault("dataDir", defaultDataDir())
	v.SetDefault("sessionKey", "mbg_session")
	v.SetDefault("cloudBaseURL", DefaultCloudBaseURL)
	v.SetDefault("httpTimeout", 15*time.Second)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("agentSyncInterval", 30*time.Second)
	v.SetDefault("agentStatusAddr", "127.0.0.1:8721")
	v.SetDefault("agentTriesWarnThreshold", 10)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		DataDir:      v.GetString("dataDir"),
		SessionKey:   v.GetString("sessionKey"),
		CloudBaseURL: v.GetString("cloudBaseURL"),
		HTTPTimeout:  v.GetDuration("httpTimeout"),
		RollbarToken: v.GetString("rollbarToken"),
		Agent: AgentConfig{
			SyncInterval:       v.GetDuration("agentSyncInterval"),
			StatusAddr:         v.GetString("agentStatusAddr"),
			TriesWarnThreshold: v.GetInt("agentTriesWarnThreshold"),
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mbg"
	}
	return filepath.Join(home, ".mbg")
}
