package tutorial

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the tutorials schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "tutorial.migrate", "dialect": db.Dialector.Name()}
	if logger != nil {
		logger.WithFields(logFields).Info("applying tutorial schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Tutorial{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("tutorial schema migration failed")
		}
		return eris.Wrap(err, "auto migrating tutorial schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("tutorial schema migration complete")
	}

	return nil
}
