package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/jobhub/backend/internal/config"
)

// DBConfig holds database configuration
type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// GetConfig derives the pool settings from the service configuration
func GetConfig(cfg *config.Config) *DBConfig {
	return &DBConfig{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

// InitDB initializes the database connection
func InitDB(dbCfg *DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test connection
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	log.Println("Database connection established")
	return db, nil
}

// InitDatabase initializes database with error handling
func InitDatabase(cfg *config.Config) *sql.DB {
	db, err := InitDB(GetConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return db
}
