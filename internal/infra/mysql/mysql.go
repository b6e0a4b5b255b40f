package mysql

import (
	"fmt"

	"github.com/izeeshan007/eternal-essence-backend/internal/config"
	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	repomysql "github.com/izeeshan007/eternal-essence-backend/internal/repository/mysql"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DSN builds the driver string. clientFoundRows makes RowsAffected count
// matched rows, which the compare-and-set update relies on.
func DSN(c config.MySQL) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

func Open(c config.MySQL) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(c)), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("mysql: open %s:%s/%s: %w", c.Host, c.Port, c.Database, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info().Str("host", c.Host).Str("database", c.Database).Msg("mysql connected")
	return db, nil
}

// GormConfig is shared with the sqlite-backed tests.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Order{}, &domain.LineItem{}, &repomysql.OrderSequence{}); err != nil {
		return fmt.Errorf("mysql: migrate: %w", err)
	}
	return nil
}
