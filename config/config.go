package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	// Mode selects which services to start: "ledger", "relayer" or "all".
	Mode string `mapstructure:"mode" json:"mode,omitempty"`

	Server struct {
		Host string `mapstructure:"host" json:"host,omitempty"`
		Port int64  `mapstructure:"port" json:"port,omitempty"`
	} `mapstructure:"server" json:"server,omitempty"`

	Database struct {
		DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
	} `mapstructure:"database" json:"database,omitempty"`

	Redis struct {
		Host     string `mapstructure:"host" json:"host,omitempty"`
		Port     string `mapstructure:"port" json:"port,omitempty"`
		User     string `mapstructure:"user" json:"user,omitempty"`
		Password string `mapstructure:"password" json:"password,omitempty"`
		DB       int    `mapstructure:"db" json:"db,omitempty"`
	} `mapstructure:"redis" json:"redis,omitempty"`

	Ledger struct {
		// Endpoint is the ledger API base URL the relayer talks to.
		Endpoint     string `mapstructure:"endpoint" json:"endpoint,omitempty"`
		AdminAddress string `mapstructure:"admin_address" json:"admin_address,omitempty"`
		DomainName   string `mapstructure:"domain_name" json:"domain_name,omitempty"`
		ChainID      uint64 `mapstructure:"chain_id" json:"chain_id,omitempty"`
	} `mapstructure:"ledger" json:"ledger,omitempty"`

	Scheduler struct {
		DiscoveryIntervalSeconds uint64 `mapstructure:"discovery_interval_seconds" json:"discovery_interval_seconds,omitempty"`
		ExecutionIntervalSeconds uint64 `mapstructure:"execution_interval_seconds" json:"execution_interval_seconds,omitempty"`
		MaxEventWindow           uint64 `mapstructure:"max_event_window" json:"max_event_window,omitempty"`
	} `mapstructure:"scheduler" json:"scheduler,omitempty"`

	Relayer struct {
		Address   string `mapstructure:"address" json:"address,omitempty"`
		AuthToken string `mapstructure:"auth_token" json:"auth_token,omitempty"`
	} `mapstructure:"relayer" json:"relayer,omitempty"`

	Datadog struct {
		Host string `mapstructure:"host" json:"host,omitempty"`
		Port string `mapstructure:"port" json:"port,omitempty"`
	} `mapstructure:"datadog" json:"datadog"`

	JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret,omitempty"`
}

func GetConfigure() (*Config, error) {
	configName := os.Getenv("AS_CONFIG_NAME")
	if configName == "" {
		configName = "config"
	}

	return ReadConfig(configName)
}

func ReadConfig(configName string) (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("mode", "all")
	viper.SetDefault("ledger.domain_name", "autosave")
	viper.SetDefault("ledger.chain_id", 1)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to reading config file, %w", err)
	}
	var cfg Config
	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &cfg, nil
}
