package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release / test
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	StockEvents string `mapstructure:"stock_events"`
	AuditEvents string `mapstructure:"audit_events"`
}

// SMTPConfig 邮件发送配置
// Settings 表中的 smtp_* 键可以在发送时覆盖这里的值
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type AuthConfig struct {
	SessionTTLMinutes  int    `mapstructure:"session_ttl_minutes"`
	SessionIdleMinutes int    `mapstructure:"session_idle_minutes"`
	BcryptCost         int    `mapstructure:"bcrypt_cost"`
	AdminEmail         string `mapstructure:"admin_email"`
	AdminPassword      string `mapstructure:"admin_password"`
}

type BusinessConfig struct {
	OutboxMaxRetry   int `mapstructure:"outbox_max_retry"`
	StockLockSeconds int `mapstructure:"stock_lock_seconds"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json / text
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	// AutomaticEnv 只对已知的 key 生效，所有可被环境变量覆盖的 key 都要有默认值
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("auth.admin_email", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("kafka.topic.stock_events", "cardstock.stock")
	v.SetDefault("kafka.topic.audit_events", "cardstock.audit")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("auth.session_ttl_minutes", 720)
	v.SetDefault("auth.session_idle_minutes", 1440)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("business.outbox_max_retry", 5)
	v.SetDefault("business.stock_lock_seconds", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig 加载配置文件
// 先读取 .env，再读取 yaml，最后由环境变量覆盖（MYSQL_HOST -> mysql.host）
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GlobalConfig = cfg
	return cfg, nil
}

// Validate 启动时校验配置，错误全部收集后一次返回
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port 不合法: %d", c.Server.Port))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode 不合法: %q", c.Server.Mode))
	}
	if c.MySQL.Host == "" {
		errs = append(errs, errors.New("mysql.host 不能为空"))
	}
	if c.MySQL.Database == "" {
		errs = append(errs, errors.New("mysql.database 不能为空"))
	}
	if c.MySQL.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("mysql.max_open_conns 必须大于0"))
	}
	if c.SMTP.Host != "" && (c.SMTP.Port <= 0 || c.SMTP.Port > 65535) {
		errs = append(errs, fmt.Errorf("smtp.port 不合法: %d", c.SMTP.Port))
	}
	if c.Auth.SessionTTLMinutes <= 0 {
		errs = append(errs, errors.New("auth.session_ttl_minutes 必须大于0"))
	}
	if c.Business.OutboxMaxRetry <= 0 {
		errs = append(errs, errors.New("business.outbox_max_retry 必须大于0"))
	}
	if c.Business.StockLockSeconds <= 0 {
		errs = append(errs, errors.New("business.stock_lock_seconds 必须大于0"))
	}

	return errors.Join(errs...)
}
