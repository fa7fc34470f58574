package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rpupo63/portfolio-projects-backend/config"
	"github.com/rpupo63/portfolio-projects-backend/errs"
	"github.com/rpupo63/portfolio-projects-backend/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

type Database struct {
	db          *gorm.DB
	projectRepo *ProjectRepo
}

// New initializes a new Database struct with each repository using a shared GORM database instance
func New(db *gorm.DB) Database {
	return Database{
		db:          db,
		projectRepo: NewProjectRepo(db),
	}
}

func (d Database) ProjectRepo() *ProjectRepo {
	return d.projectRepo
}

// AutoMigrate creates or alters the tables backing the models
func (d Database) AutoMigrate() error {
	return d.db.AutoMigrate(&models.Project{})
}

// DSN builds the connection string for the configured DB_TYPE
func DSN(c map[string]string) (string, error) {
	dbType := config.GetString(c, "DB_TYPE", "postgres")
	switch dbType {
	case "supa":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=require",
			config.GetString(c, "SUPABASE_DB_HOST", ""),
			config.GetString(c, "SUPABASE_DB_USER", ""),
			config.GetString(c, "SUPABASE_DB_PASSWORD", ""),
			config.GetString(c, "SUPABASE_DB_NAME", ""),
			config.GetString(c, "SUPABASE_DB_PORT", "5432"),
		), nil
	case "postgres":
		dsn := config.GetString(c, "DATABASE_URL", "")
		if dsn == "" {
			return "", errs.NewEnvironmentVariableError("DATABASE_URL")
		}
		return dsn, nil
	default:
		return "", errs.NewConfigInvalidError("DB_TYPE", dbType)
	}
}

// Connect opens the GORM connection and checks it with a trivial query
func Connect(c map[string]string) (*gorm.DB, error) {
	connStr, err := DSN(c)
	if err != nil {
		return nil, err
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             10 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		PrepareStmt: false,
		Logger:      newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if replicas := config.GetList(c, "DATABASE_REPLICA_URLS"); len(replicas) > 0 {
		if err := db.Use(replicaResolver(replicas)); err != nil {
			return nil, fmt.Errorf("error registering read replicas: %w", err)
		}
	}

	// gen_random_uuid() lives in pgcrypto on Postgres < 13
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"pgcrypto\"").Error; err != nil {
		return nil, fmt.Errorf("error enabling pgcrypto extension: %w", err)
	}

	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		return nil, fmt.Errorf("error testing database connection: %w", err)
	}

	return db, nil
}

// replicaResolver sends plain reads to the replicas at random; writes and
// queries marked with dbresolver.Write stay on the primary.
func replicaResolver(dsns []string) *dbresolver.DBResolver {
	replicas := make([]gorm.Dialector, 0, len(dsns))
	for _, dsn := range dsns {
		replicas = append(replicas, postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}))
	}
	return dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	})
}
