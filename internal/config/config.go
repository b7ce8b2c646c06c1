package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type DatabaseConfig struct {
	Driver string       `mapstructure:"driver"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
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

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	GameEvents    string `mapstructure:"game_events"`
	PaymentEvents string `mapstructure:"payment_events"`
}

type BusinessConfig struct {
	FreeCreditGrant       int64  `mapstructure:"free_credit_grant"`
	CreditUnitPrice       int64  `mapstructure:"credit_unit_price"`
	Currency              string `mapstructure:"currency"`
	MaxPurchaseQuantity   int64  `mapstructure:"max_purchase_quantity"`
	InvoiceTimeoutMinutes int    `mapstructure:"invoice_timeout_minutes"`
	StoreTimeoutMs        int    `mapstructure:"store_timeout_ms"`
	ReconcileAfterSeconds int    `mapstructure:"reconcile_after_seconds"`
	MaxRetryCount         int    `mapstructure:"max_retry_count"`
}

// StoreTimeout 单次存储调用的超时上限
func (b BusinessConfig) StoreTimeout() time.Duration {
	return time.Duration(b.StoreTimeoutMs) * time.Millisecond
}

func (b BusinessConfig) InvoiceTimeout() time.Duration {
	return time.Duration(b.InvoiceTimeoutMinutes) * time.Minute
}

func (b BusinessConfig) ReconcileAfter() time.Duration {
	return time.Duration(b.ReconcileAfterSeconds) * time.Second
}

type CatalogConfig struct {
	MediaBaseURL string             `mapstructure:"media_base_url"`
	Rare         map[string]float64 `mapstructure:"rare"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var GlobalConfig *Config

// Default 返回一份完整可用的默认配置（本地开发、测试使用）
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			MySQL: MySQLConfig{
				Host:         "127.0.0.1",
				Port:         3306,
				User:         "root",
				Database:     "eggbot",
				MaxOpenConns: 50,
				MaxIdleConns: 10,
			},
			SQLite: SQLiteConfig{Path: "eggbot.db"},
		},
		Redis: RedisConfig{Host: "127.0.0.1", Port: 6379},
		Kafka: KafkaConfig{
			Brokers: []string{"127.0.0.1:9092"},
			Topic: KafkaTopicConfig{
				GameEvents:    "eggbot.game",
				PaymentEvents: "eggbot.payment",
			},
		},
		Business: BusinessConfig{
			FreeCreditGrant:       5,
			CreditUnitPrice:       10,
			Currency:              "XTR",
			MaxPurchaseQuantity:   100,
			InvoiceTimeoutMinutes: 30,
			StoreTimeoutMs:        3000,
			ReconcileAfterSeconds: 60,
			MaxRetryCount:         5,
		},
		Catalog: CatalogConfig{
			MediaBaseURL: "https://cdn.example.com/figures",
			Rare: map[string]float64{
				"will":             0.005,
				"will-upside-down": 0.01,
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 加载配置文件
//
// 加载顺序：默认值 -> config.yaml -> .env / 环境变量（EGGBOT_ 前缀）
// 例如 EGGBOT_DATABASE_MYSQL_PASSWORD 覆盖 database.mysql.password
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("EGGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
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

// MustLoad 加载失败直接退出（进程入口使用）
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	return cfg
}

// Validate 校验业务配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.Business.FreeCreditGrant < 0 {
		return errors.New("business.free_credit_grant 不能为负数")
	}
	if c.Business.CreditUnitPrice <= 0 {
		return errors.New("business.credit_unit_price 必须大于0")
	}
	if c.Business.MaxPurchaseQuantity <= 0 {
		return errors.New("business.max_purchase_quantity 必须大于0")
	}
	if c.Business.StoreTimeoutMs <= 0 {
		return errors.New("business.store_timeout_ms 必须大于0")
	}
	return nil
}

// setDefaults 把默认配置注册到 viper，使环境变量覆盖对未出现在 yaml 中的键也生效
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.mysql.host", d.Database.MySQL.Host)
	v.SetDefault("database.mysql.port", d.Database.MySQL.Port)
	v.SetDefault("database.mysql.user", d.Database.MySQL.User)
	v.SetDefault("database.mysql.password", d.Database.MySQL.Password)
	v.SetDefault("database.mysql.database", d.Database.MySQL.Database)
	v.SetDefault("database.mysql.max_open_conns", d.Database.MySQL.MaxOpenConns)
	v.SetDefault("database.mysql.max_idle_conns", d.Database.MySQL.MaxIdleConns)
	v.SetDefault("database.sqlite.path", d.Database.SQLite.Path)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.host", d.Redis.Host)
	v.SetDefault("redis.port", d.Redis.Port)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)

	v.SetDefault("kafka.enabled", d.Kafka.Enabled)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic.game_events", d.Kafka.Topic.GameEvents)
	v.SetDefault("kafka.topic.payment_events", d.Kafka.Topic.PaymentEvents)

	v.SetDefault("business.free_credit_grant", d.Business.FreeCreditGrant)
	v.SetDefault("business.credit_unit_price", d.Business.CreditUnitPrice)
	v.SetDefault("business.currency", d.Business.Currency)
	v.SetDefault("business.max_purchase_quantity", d.Business.MaxPurchaseQuantity)
	v.SetDefault("business.invoice_timeout_minutes", d.Business.InvoiceTimeoutMinutes)
	v.SetDefault("business.store_timeout_ms", d.Business.StoreTimeoutMs)
	v.SetDefault("business.reconcile_after_seconds", d.Business.ReconcileAfterSeconds)
	v.SetDefault("business.max_retry_count", d.Business.MaxRetryCount)

	v.SetDefault("catalog.media_base_url", d.Catalog.MediaBaseURL)
	// map[string]interface{} 才会被 viper 展开成子键，和 yaml 中的 catalog.rare.* 合并
	rare := make(map[string]interface{}, len(d.Catalog.Rare))
	for slug, p := range d.Catalog.Rare {
		rare[slug] = p
	}
	v.SetDefault("catalog.rare", rare)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}
