package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/levels"
	"github.com/2beens/gymtracker/internal/logging"
	"github.com/2beens/gymtracker/internal/seed"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/pkg"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

// demo data for local development

type seedSecrets struct {
	PostgresPassword string `env:"GYMTRACKER_POSTGRES_PASS"`
}

func main() {
	env := flag.String("env", "development", "environment [dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	usersCount := flag.Int("users", 10, "number of demo users")
	weeks := flag.Int("weeks", seed.DefaultWeeks, "weeks of workout history per user")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	if err := logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    "debug",
		Environment: *env,
	}); err != nil {
		log.Fatalf("logging setup: %s", err)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("load location: %s", err)
	}

	ctx := context.Background()
	var secrets seedSecrets
	if err := envconfig.Process(ctx, &secrets); err != nil {
		log.Fatalf("process env: %s", err)
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

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatalf("migrate: %s", err)
	}

	levelsRepo := levels.NewRepo(dbPool)
	usersRepo := users.NewRepo(dbPool)
	workoutsRepo := workouts.NewRepo(dbPool)

	var demoLevels []levels.Level
	for _, l := range seed.Levels() {
		added, err := levelsRepo.Add(ctx, l)
		if errors.Is(err, levels.ErrLevelNameTaken) {
			log.Warnf("level %s already exists, skipping", l.Name)
			continue
		}
		if err != nil {
			log.Fatalf("add level %s: %s", l.Name, err)
		}
		demoLevels = append(demoLevels, *added)
	}
	if len(demoLevels) == 0 {
		log.Fatalln("no new demo levels created, database already seeded?")
	}

	passwordHash, err := pkg.HashPassword(seed.DefaultPassword)
	if err != nil {
		log.Fatalf("hash password: %s", err)
	}

	now := time.Now().In(location)
	generator := seed.NewGenerator(*randSeed)
	workoutsCount := 0
	for i, u := range generator.Users(*usersCount, passwordHash, now) {
		user, err := usersRepo.Add(ctx, u)
		if errors.Is(err, users.ErrEmailTaken) {
			log.Warnf("user %s already exists, skipping", u.Email)
			continue
		}
		if err != nil {
			log.Fatalf("add user %s: %s", u.Email, err)
		}

		level := demoLevels[i%len(demoLevels)]
		if err := usersRepo.AssignLevel(ctx, user.ID, &level.ID); err != nil {
			log.Fatalf("assign level to %s: %s", user.Email, err)
		}

		for _, w := range generator.Workouts(user.ID, level, now, *weeks) {
			if _, err := workoutsRepo.Add(ctx, w); err != nil {
				log.Fatalf("add workout for %s: %s", user.Email, err)
			}
			workoutsCount++
		}
		log.Infof("seeded %s (%s) on level %s", user.Name, user.Email, level.Name)
	}

	log.Infof("seed done: %d levels, %d workouts, password for all users: %s", len(demoLevels), workoutsCount, seed.DefaultPassword)
}
