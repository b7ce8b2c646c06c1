package database

import (
	"fmt"
	"time"

	"eggbot/internal/config"
	"eggbot/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open 按配置打开数据库并自动迁移表结构
func Open(cfg *config.DatabaseConfig, verbose bool) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if verbose {
		logLevel = gormlogger.Info
	}
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case config.DriverMySQL:
		db, err = openMySQL(&cfg.MySQL, gormCfg)
	case config.DriverSQLite:
		db, err = OpenSQLite(cfg.SQLite.Path, gormCfg)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	DB = db
	return db, nil
}

func openMySQL(cfg *config.MySQLConfig, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 DB 失败: %w", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// OpenSQLite 打开 SQLite 数据库（本地开发、测试）
//
// WAL + busy_timeout 防止并发写时报 database is locked；
// SQLite 是单写者，连接池限制为 1，事务天然串行。
func OpenSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_busy_timeout=5000"), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 DB 失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Migrate 自动迁移表结构
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Account{},
		&model.CollectionEntry{},
		&model.Payment{},
		&model.Invoice{},
		&model.CreditTransaction{},
		&model.OutboxMessage{},
	)
	if err != nil {
		return fmt.Errorf("自动迁移表结构失败: %w", err)
	}
	return nil
}
