package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/2beens/gymtracker/internal/backup"
	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/logging"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// workouts google drive backup cmd

type backupSecrets struct {
	PostgresPassword string `env:"GYMTRACKER_POSTGRES_PASS"`
	ReaderEmail      string `env:"GYMTRACKER_BACKUP_READER_EMAIL"`
}

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	credentialsFile := flag.String("gd-creds", "./drive-credentials.json", "google drive service account credentials json")
	logsPath := flag.String("logs-path", "", "backup logs file path (empty for stdout)")
	reinit := flag.Bool("reinit", false, "reinitialize all again")
	flag.Parse()

	if err := logging.Setup(logging.LoggerSetupParams{
		LogFileName: *logsPath,
		LogToStdout: *logsPath == "",
		LogLevel:    "debug",
		Environment: *env,
	}); err != nil {
		log.Fatalf("logging setup: %s", err)
	}

	log.Println("starting workouts backup ...")
	if *reinit {
		log.Println("!! attention: will reinitialize all again...")
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	var secrets backupSecrets
	if err := envconfig.Process(ctx, &secrets); err != nil {
		log.Fatalf("process env: %s", err)
	}

	credentials, err := os.ReadFile(*credentialsFile)
	if err != nil {
		log.Fatalf("unable to read credentials file: %s", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: secrets.PostgresPassword,
	})
	if err != nil {
		log.Fatalf("create db pool: %s", err)
	}
	defer dbPool.Close()

	store, err := backup.NewDriveStore(ctx, option.WithCredentialsJSON(credentials))
	if err != nil {
		log.Fatalf("create drive store: %s", err)
	}

	service, err := backup.NewService(ctx, store, workouts.NewRepo(dbPool), secrets.ReaderEmail)
	if err != nil {
		log.Fatalf("failed to create google drive backup service: %s", err)
	}

	baseTime := time.Now()
	if *reinit {
		if err := service.Reinit(ctx, baseTime); err != nil {
			log.Fatalf("reinit failed: %s", err)
		}
		log.Println("reinit done")
		return
	}

	if err := service.DoBackup(ctx, baseTime); err != nil {
		log.Fatalf("backup failed: %+v", err)
	}
	log.Println("backup done")
}
