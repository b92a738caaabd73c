package models

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Open connects to the configured database and runs migrations.
// driver is "sqlite" or "mysql"; dsn is the sqlite filename or a mysql DSN.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect %s database at %s: %w", driver, dsn, err)
	}

	err = db.AutoMigrate(
		&User{},
		&Image{},
		&Annotation{},
		&Verification{},
		&Notification{},
		&AuditLogEntry{},
		&Batch{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// ConnectDataBase opens the database and installs the package-level handle.
func ConnectDataBase(driver, dsn string) {
	db, err := Open(driver, dsn)
	if err != nil {
		log.Fatal("connection error: ", err)
	}
	log.Info(fmt.Sprintf("Connected %s database at %s", driver, dsn))
	DB = db
}
