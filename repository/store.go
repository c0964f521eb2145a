package repository

import (
	"fmt"

	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const memoryDSN = "file::memory:"

// OpenMemoryStore opens the entity store on an in-memory SQLite database and
// migrates its tables. Nothing outlives the process.
func OpenMemoryStore(logger cmtlog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(memoryDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	// each connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db, logger); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the entity tables that do not exist yet
func Migrate(db *gorm.DB, logger cmtlog.Logger) error {
	migrator := db.Migrator()

	tables := []interface{}{
		&models.Participant{},
		&models.Vehicle{},
		&models.InsurancePolicy{},
		&models.AccidentReport{},
		&models.RepairRecord{},
	}
	for _, table := range tables {
		if migrator.HasTable(table) {
			continue
		}
		if err := migrator.CreateTable(table); err != nil {
			return fmt.Errorf("creating %T table: %w", table, err)
		}
		logger.Debug("Table created", "table", fmt.Sprintf("%T", table))
	}

	logger.Info("Store migration completed")
	return nil
}

// CloseStore releases the store's connection
func CloseStore(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
