package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"SERVER"`
	FL        FLConfig        `mapstructure:"FL"`
	AWS       AWSConfig       `mapstructure:"AWS"`
	Scheduler SchedulerConfig `mapstructure:"SCHEDULER"`
}

type ServerConfig struct {
	Host     string `mapstructure:"HOST"`
	Port     string `mapstructure:"PORT"`
	Endpoint string `mapstructure:"ENDPOINT"`
}

type FLConfig struct {
	NumWorkers    int    `mapstructure:"NUM_WORKERS"`
	Samples       int    `mapstructure:"SAMPLES"`
	Features      int    `mapstructure:"FEATURES"`
	SampleSize    int    `mapstructure:"SAMPLE_SIZE"`
	LocalEpochs   int    `mapstructure:"LOCAL_EPOCHS"`
	BatchSize     int    `mapstructure:"BATCH_SIZE"`
	DefaultRounds int    `mapstructure:"DEFAULT_ROUNDS"`
	RoundTimeout  int    `mapstructure:"ROUND_TIMEOUT"`
	RoundInterval int    `mapstructure:"ROUND_INTERVAL"`
	CheckpointDir string `mapstructure:"CHECKPOINT_DIR"`
	Seed          int64  `mapstructure:"SEED"`
}

type AWSConfig struct {
	Region          string `mapstructure:"REGION"`
	BucketName      string `mapstructure:"BUCKET_NAME"`
	AccessKeyID     string `mapstructure:"ACCESS_KEY_ID"`
	SecretAccessKey string `mapstructure:"SECRET_ACCESS_KEY"`
}

type SchedulerConfig struct {
	Interval int `mapstructure:"INTERVAL"`
}

func (fc *FLConfig) RoundTimeoutDuration() time.Duration {
	return time.Duration(fc.RoundTimeout) * time.Second
}

func (fc *FLConfig) RoundIntervalDuration() time.Duration {
	return time.Duration(fc.RoundInterval) * time.Second
}

type ConfigManager struct {
	config     *Config
	configPath string
	mutex      sync.RWMutex
}

var (
	instance *ConfigManager
	once     sync.Once
)

func GetConfigManager() *ConfigManager {
	once.Do(func() {
		instance = &ConfigManager{
			configPath: ".env",
		}
	})
	return instance
}

func (cm *ConfigManager) SetConfigPath(path string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.configPath = path
	cm.config = nil
}

func (cm *ConfigManager) GetConfig() (*Config, error) {
	cm.mutex.RLock()
	if cm.config != nil {
		defer cm.mutex.RUnlock()
		return cm.config, nil
	}
	cm.mutex.RUnlock()

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		return cm.config, nil
	}

	var err error
	cm.config, err = loadConfigFile(cm.configPath)
	return cm.config, err
}

func (cm *ConfigManager) ReloadConfig() (*Config, error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	var err error
	cm.config, err = loadConfigFile(cm.configPath)
	return cm.config, err
}

func (cm *ConfigManager) GetConfigPath() string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.configPath
}

func loadConfigFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	setStringDefault(v, "SERVER_HOST", "0.0.0.0")
	setStringDefault(v, "SERVER_PORT", "8000")
	setStringDefault(v, "SERVER_ENDPOINT", "/api")
	setIntDefault(v, "FL_NUM_WORKERS", 5)
	setIntDefault(v, "FL_SAMPLES", 10000)
	setIntDefault(v, "FL_FEATURES", 41)
	setIntDefault(v, "FL_SAMPLE_SIZE", 3)
	setIntDefault(v, "FL_LOCAL_EPOCHS", 5)
	setIntDefault(v, "FL_BATCH_SIZE", 32)
	setIntDefault(v, "FL_DEFAULT_ROUNDS", 50)
	setIntDefault(v, "FL_ROUND_TIMEOUT", 600)
	setIntDefault(v, "FL_ROUND_INTERVAL", 1)
	setStringDefault(v, "FL_CHECKPOINT_DIR", "checkpoints")

	v.SetDefault("SERVER", map[string]interface{}{
		"HOST":     v.GetString("SERVER_HOST"),
		"PORT":     v.GetString("SERVER_PORT"),
		"ENDPOINT": v.GetString("SERVER_ENDPOINT"),
	})

	v.SetDefault("FL", map[string]interface{}{
		"NUM_WORKERS":    v.GetInt("FL_NUM_WORKERS"),
		"SAMPLES":        v.GetInt("FL_SAMPLES"),
		"FEATURES":       v.GetInt("FL_FEATURES"),
		"SAMPLE_SIZE":    v.GetInt("FL_SAMPLE_SIZE"),
		"LOCAL_EPOCHS":   v.GetInt("FL_LOCAL_EPOCHS"),
		"BATCH_SIZE":     v.GetInt("FL_BATCH_SIZE"),
		"DEFAULT_ROUNDS": v.GetInt("FL_DEFAULT_ROUNDS"),
		"ROUND_TIMEOUT":  v.GetInt("FL_ROUND_TIMEOUT"),
		"ROUND_INTERVAL": v.GetInt("FL_ROUND_INTERVAL"),
		"CHECKPOINT_DIR": v.GetString("FL_CHECKPOINT_DIR"),
		"SEED":           v.GetInt64("FL_SEED"),
	})

	v.SetDefault("AWS", map[string]interface{}{
		"REGION":            v.GetString("AWS_REGION"),
		"BUCKET_NAME":       v.GetString("AWS_BUCKET_NAME"),
		"ACCESS_KEY_ID":     v.GetString("AWS_ACCESS_KEY_ID"),
		"SECRET_ACCESS_KEY": v.GetString("AWS_SECRET_ACCESS_KEY"),
	})

	v.SetDefault("SCHEDULER", map[string]interface{}{
		"INTERVAL": v.GetInt("SCHEDULER_INTERVAL"),
	})

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if config.FL.NumWorkers <= 0 {
		return nil, fmt.Errorf("FL_NUM_WORKERS must be positive")
	}
	if config.FL.Features <= 0 || config.FL.Samples <= 0 {
		return nil, fmt.Errorf("FL_FEATURES and FL_SAMPLES must be positive")
	}

	return &config, nil
}

func setStringDefault(v *viper.Viper, key, value string) {
	if v.GetString(key) == "" {
		v.Set(key, value)
	}
}

func setIntDefault(v *viper.Viper, key string, value int) {
	if v.GetInt(key) == 0 {
		v.Set(key, value)
	}
}
