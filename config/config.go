package config

import (
	"log"
	"os"
	"strconv"

	"canteen-api/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InviteSecret signs guardian invite tokens; read from env or fallback
var InviteSecret = []byte(GetEnv("INVITE_SECRET", "canteen_invite_secret_2024"))

// SessionCookieName is the cookie carrying the opaque session token
const SessionCookieName = "session_token"

// TopUpMaxAmount caps a single wallet top-up
var TopUpMaxAmount = GetEnvInt("TOPUP_MAX_AMOUNT", 10000)

// Mail transport settings; email sending stays disabled unless MAIL_HOST is set
var (
	MailHost     = GetEnv("MAIL_HOST", "")
	MailPort     = GetEnv("MAIL_PORT", "587")
	MailUsername = GetEnv("MAIL_USERNAME", "")
	MailPassword = GetEnv("MAIL_PASSWORD", "")
	MailFrom     = GetEnv("MAIL_FROM", "canteen@school.local")
)

func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func InitDB() {
	var err error
	DB, err = gorm.Open(sqlite.Open(GetEnv("DB_PATH", "canteen.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	log.Println("Database connected and migrated successfully")
}

// Migrate runs the schema migration on any handle; tests use it with
// per-test in-memory databases.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.GuardianLink{},
		&models.MenuItem{},
		&models.Order{},
		&models.LedgerEntry{},
		&models.Notification{},
	)
}
