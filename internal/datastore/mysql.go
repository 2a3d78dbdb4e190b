package datastore

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// openMySQL sets up the MySQL database connection. The DSN is built by
// the configuration layer from the database URL; credentials never
// appear in logs, only the redacted form.
func (ds *DataStore) openMySQL() error {
	db, err := gorm.Open(mysql.Open(ds.target.DSN), &gorm.Config{Logger: ds.createGormLogger()})
	if err != nil {
		getLogger().Error("Failed to open MySQL database",
			"target", ds.target.Redacted,
			"error", err)
		return connectionError(err, "open_mysql", ds.target.Redacted)
	}

	ds.db = db

	if ds.settings.Debug {
		getLogger().Debug("MySQL database opened",
			"target", ds.target.Redacted)
	}
	return nil
}
