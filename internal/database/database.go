package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fieldCV/internal/config"
)

// InitDatabase 使用配置初始化 PostgreSQL 连接，并返回 GORM 数据库实例。
func InitDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap db: %w", err)
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate 执行 AutoMigrate 并补充 GORM 标签表达不了的复合唯一索引。
//
// fields 表上的 (user_id, name, group_id, belong_id, pos) 复合唯一索引把
// NULL 当作相等值参与比较（NULLS NOT DISTINCT），用来在存储层关死
// 应用层 check-then-act 的竞态窗口；仅 PostgreSQL 15+ 支持该语法，
// 测试用的 SQLite 依赖应用层校验。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &FieldGroup{}, &Field{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		const idx = `CREATE UNIQUE INDEX IF NOT EXISTS idx_fields_identity
			ON fields (user_id, name, group_id, belong_id, pos) NULLS NOT DISTINCT`
		if err := db.Exec(idx).Error; err != nil {
			return fmt.Errorf("create fields identity index: %w", err)
		}
	}

	return nil
}
