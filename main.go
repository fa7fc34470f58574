package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/portfolio-projects-backend/api"
	"github.com/rpupo63/portfolio-projects-backend/config"
	"github.com/rpupo63/portfolio-projects-backend/database"
	"github.com/rpupo63/portfolio-projects-backend/models"
	"github.com/rpupo63/portfolio-projects-backend/services"
	"github.com/rpupo63/portfolio-projects-backend/storage"
)

func main() {
	fmt.Println("Initializing app...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	c := config.New()

	level, err := zerolog.ParseLevel(config.GetString(c, "LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	fmt.Printf("DB_TYPE: %s\n", config.GetString(c, "DB_TYPE", "postgres"))
	db, err := database.Connect(c)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}

	// If generating models, run generation and exit
	if config.GetBool(c, "GENERATE_MODELS", false) {
		fmt.Println("Generating models and query helpers...")
		if err := models.GenerateModels(db); err != nil {
			log.Fatal().Err(err).Msg("Error generating models")
		}
		return
	}

	// If generating column mismatch report, run report and exit
	if config.GetBool(c, "GENERATE_COLUMN_REPORT", false) {
		fmt.Println("Generating column mismatch report...")
		if err := models.GenerateColumnMismatchReport(db); err != nil {
			log.Fatal().Err(err).Msg("Error generating column mismatch report")
		}
		return
	}

	currentDB := database.New(db)
	if config.GetBool(c, "AUTO_MIGRATE", false) {
		if err := currentDB.AutoMigrate(); err != nil {
			log.Fatal().Err(err).Msg("Error migrating database")
		}
	}

	reclaimer, err := storage.NewReclaimer(
		config.GetString(c, "UPLOAD_DIR", "uploads"),
		log.Logger,
		storage.WithConcurrency(config.GetInt(c, "RECLAIM_CONCURRENCY", 4)),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Error preparing upload directory")
	}

	projects := services.NewProjectService(currentDB.ProjectRepo(), reclaimer, log.Logger)

	// Both the server and the signal listener may report; neither should block on exit
	errChannel := make(chan error, 2)

	server, err := api.NewServer(c, projects, reclaimer.Root())
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing server")
	}

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(30 * time.Second)
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
