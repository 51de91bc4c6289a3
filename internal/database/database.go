// Package database opens the gorm connection shared by the SQL backed
// store and catalog.
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects with the named driver. For sqlite the dsn is a file path or
// a "file:" URI. Slow queries and errors are written to log.
func Open(driver, dsn string, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormLog := gormLogger.New(
		log.With(zap.String("component", "gorm")),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer; serialize through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// OpenMemory opens a private in-memory sqlite database.
func OpenMemory(name string) (*gorm.DB, error) {
	db, err := Open(DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), logger.NewNop())
	if err != nil {
		return nil, err
	}
	db.Logger = gormLogger.Default.LogMode(gormLogger.Silent)
	return db, nil
}
