// api/config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Pipeline      PipelineConfiguration
	Risk          RiskConfiguration
	Audit         AuditConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Generation    GenerationConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// PipelineConfiguration stores orchestration tunables
type PipelineConfiguration struct {
	StageTimeout     time.Duration
	RegulatedDomains []string
	DomainWhitelist  map[string][]string
	RuleSetPath      string
}

// RiskConfiguration stores scoring tunables left open by policy
type RiskConfiguration struct {
	MaxTextLength  int
	WarnThreshold  int
	BlockThreshold int
}

// AuditConfiguration stores recorder tunables
type AuditConfiguration struct {
	WriteTimeout    time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	InlineSizeLimit int
	RetentionTTL    time.Duration
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr          string
	EncryptionKey string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

// GenerationConfiguration stores the generation capability settings
type GenerationConfiguration struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	// Server
	viper.SetDefault("server.port", "8080")

	// Pipeline orchestration
	viper.SetDefault("pipeline.stageTimeout", "5s")
	viper.SetDefault("pipeline.regulatedDomains", []string{"healthcare", "finance", "legal"})
	// Signals exempt from the regulated-domain warn escalation, keyed by
	// domain. Empty by default: escalation applies to every signal.
	viper.SetDefault("pipeline.domainWhitelist", map[string][]string{})
	viper.SetDefault("pipeline.ruleSetPath", "config/rulesets/default.yaml")

	// Risk scoring. Exact thresholds are deployment policy, not code.
	viper.SetDefault("risk.maxTextLength", 20000)
	viper.SetDefault("risk.warnThreshold", 40)
	viper.SetDefault("risk.blockThreshold", 75)
	viper.SetDefault("risk.classifierTimeout", "2s")
	viper.SetDefault("risk.toxicityThreshold", 0.7)
	viper.SetDefault("risk.entityScoreThreshold", 0.8)

	// Audit recorder
	viper.SetDefault("audit.writeTimeout", "2s")
	viper.SetDefault("audit.retryAttempts", 5)
	viper.SetDefault("audit.retryBaseDelay", "200ms")
	viper.SetDefault("audit.inlineSizeLimit", 8192)
	viper.SetDefault("audit.retentionTTL", "8760h")       // 1 year default
	viper.SetDefault("audit.retentionTTLHipaa", "52560h") // 6 years
	viper.SetDefault("audit.retentionTTLSox", "61320h")   // 7 years
	viper.SetDefault("audit.index", "audit-records")
	viper.SetDefault("audit.feedbackIndex", "audit-feedback")
	viper.SetDefault("audit.fallbackQueueKey", "audit:fallback")

	// External services
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("generation.model", "gemini-1.5-flash")
	viper.SetDefault("generation.timeout", "30s")
	viper.SetDefault("objectstore.bucket", "governance-artifacts")
	viper.SetDefault("objectstore.region", "us-east-1")
	viper.SetDefault("classifier.region", "us-east-1")

	viper.SetDefault("log.dir", "logging")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 retrieves a float64 value from the configuration
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStringSlice retrieves a string slice value from the configuration
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// GetStringMapStringSlice retrieves a map of string slices from the configuration
func GetStringMapStringSlice(key string) map[string][]string {
	return viper.GetStringMapStringSlice(key)
}
