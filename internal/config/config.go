package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"`
	Run      RunConfig      `mapstructure:"run"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
}

type BrowserConfig struct {
	ExecutablePath  string        `mapstructure:"executablePath"`
	Headless        bool          `mapstructure:"headless"`
	UserDataDir     string        `mapstructure:"userDataDir"`
	Driver          string        `mapstructure:"driver"` // auto, chromedp, playwright
	ActionTimeout   time.Duration `mapstructure:"actionTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	MaxSessions     int           `mapstructure:"maxSessions"`
	Permissions     []string      `mapstructure:"permissions"`
}

type RunConfig struct {
	Strict              bool          `mapstructure:"strict"`
	ContinueOnFailure   bool          `mapstructure:"continueOnFailure"`
	Parallel            int           `mapstructure:"parallel"`
	TestTimeout         time.Duration `mapstructure:"testTimeout"`
	RetryAttempts       int           `mapstructure:"retryAttempts"`
	RetryDelay          time.Duration `mapstructure:"retryDelay"`
	ScreenshotOnFailure string        `mapstructure:"screenshotOnFailure"` // directory, empty disables
}

type MetricsConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // empty disables the file sink
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
	Interval     time.Duration `mapstructure:"interval"` // 0 runs only on demand
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	ApiKey         string   `mapstructure:"apiKey"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("browser.executablePath", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.userDataDir", "")
	v.SetDefault("browser.driver", "auto")
	v.SetDefault("browser.actionTimeout", "10s")
	v.SetDefault("browser.shutdownTimeout", "10s")
	v.SetDefault("browser.maxSessions", 4)
	v.SetDefault("browser.permissions", []string{"camera", "microphone"})

	v.SetDefault("run.strict", false)
	v.SetDefault("run.continueOnFailure", false)
	v.SetDefault("run.parallel", 1)
	v.SetDefault("run.testTimeout", "0s")
	v.SetDefault("run.retryAttempts", 3)
	v.SetDefault("run.retryDelay", "500ms")
	v.SetDefault("run.screenshotOnFailure", "")

	v.SetDefault("metrics.dir", "metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/runner.log")

	v.SetDefault("server.port", 9464)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "15s")
	v.SetDefault("server.idleTimeout", "60s")
	v.SetDefault("server.interval", "5m")

	v.SetDefault("security.allowedOrigins", []string{"*"})
	v.SetDefault("security.apiKey", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scrytest")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.scrytest")
		v.AddConfigPath("/etc/scrytest")
	}

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SCRYTEST")

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
