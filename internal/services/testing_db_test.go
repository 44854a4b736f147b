package services

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/openhelm/supportdesk/internal/models"
)

// newTestDB opens a private in-memory sqlite database. The pool is pinned to
// one connection because every sqlite :memory: connection is its own database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Ticket{},
		&models.Conversation{},
		&models.Comment{},
		&models.Activity{},
		&models.TicketAttachment{},
	))
	return db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{
		ExternalID: "ext-1",
		Username:   "casey",
		Email:      "casey@example.com",
		Role:       models.RoleCustomer,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
