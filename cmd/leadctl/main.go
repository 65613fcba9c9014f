// leadctl is the operator CLI: manual unlocks, on-demand engine ticks and
// progress exports against the same database the daemon uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"leadpath/internal/config"
	"leadpath/internal/db"
	"leadpath/internal/export"
	"leadpath/internal/model"
	"leadpath/internal/notify"
	"leadpath/internal/scheduler"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(os.Getenv("LEADPATH_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "force-unlock":
		err = runForceUnlock(ctx, database, os.Args[2:])
	case "tick":
		err = runTick(ctx, cfg, database, logger, os.Args[2:])
	case "enroll":
		err = runEnroll(ctx, database, os.Args[2:])
	case "complete":
		err = runComplete(ctx, database, os.Args[2:])
	case "export":
		err = runExport(ctx, database, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: leadctl <command> [flags]

commands:
  enroll        -name <n> -email <e> [-phone <p>] -category <c> -weeks <n> -days <n>
  complete      -user <id> -instance <id> [-points <n>]
  force-unlock  -user <id> -instance <id>   unlock one lesson out of band
  tick          -engine unlock|reminder|support [-now RFC3339]   run one pass now
  export        [-out progress.xlsx]        write the progress workbook`)
}

// runEnroll creates a user with default preferences, an active journey in the
// given category and the full grid of locked lesson instances.
func runEnroll(ctx context.Context, database *db.DB, args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	name := fs.String("name", "", "user name")
	email := fs.String("email", "", "email address")
	phone := fs.String("phone", "", "phone number (optional)")
	category := fs.String("category", "", "lesson category")
	weeks := fs.Int("weeks", 4, "weeks in the category")
	days := fs.Int("days", 5, "lesson days per week")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" || *category == "" {
		return fmt.Errorf("enroll requires -name, -email and -category")
	}

	userID, err := database.CreateUser(ctx, *name, *email, *phone)
	if err != nil {
		return err
	}
	if err := database.EnsurePreferences(ctx, userID); err != nil {
		return err
	}
	if err := database.UpsertJourney(ctx, &model.Journey{
		UserID:          userID,
		CurrentCategory: *category,
		Status:          model.JourneyActive,
	}); err != nil {
		return err
	}

	templates := make([]model.LessonTemplate, 0, (*weeks)*(*days))
	for w := 1; w <= *weeks; w++ {
		for d := 1; d <= *days; d++ {
			templates = append(templates, model.LessonTemplate{Category: *category, WeekNumber: w, DayNumber: d})
		}
	}
	if err := database.CreateInstances(ctx, userID, templates); err != nil {
		return err
	}

	fmt.Printf("enrolled user %d in %s with %d lessons\n", userID, *category, len(templates))
	return nil
}

// runComplete marks an available lesson completed and records points.
func runComplete(ctx context.Context, database *db.DB, args []string) error {
	fs := flag.NewFlagSet("complete", flag.ExitOnError)
	userID := fs.Int64("user", 0, "user id")
	instanceID := fs.Int64("instance", 0, "lesson instance id")
	points := fs.Int("points", 0, "points earned")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == 0 || *instanceID == 0 {
		return fmt.Errorf("complete requires -user and -instance")
	}

	changed, err := database.CompleteInstance(ctx, *userID, *instanceID, *points, time.Now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		fmt.Println("instance is not available, nothing to complete")
		return nil
	}
	fmt.Println("instance completed")
	return nil
}

// runForceUnlock bypasses the hour/weekday gates but still honors the status
// machine: only a locked instance transitions.
func runForceUnlock(ctx context.Context, database *db.DB, args []string) error {
	fs := flag.NewFlagSet("force-unlock", flag.ExitOnError)
	userID := fs.Int64("user", 0, "user id")
	instanceID := fs.Int64("instance", 0, "lesson instance id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == 0 || *instanceID == 0 {
		return fmt.Errorf("force-unlock requires -user and -instance")
	}

	changed, err := database.ForceUnlock(ctx, *userID, *instanceID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		fmt.Println("instance already unlocked")
		return nil
	}
	fmt.Println("instance unlocked")
	return nil
}

func runTick(ctx context.Context, cfg *config.Config, database *db.DB, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("tick", flag.ExitOnError)
	engine := fs.String("engine", "unlock", "engine to run: unlock, reminder or support")
	nowFlag := fs.String("now", "", "tick instant as RFC3339 (default: current time)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := time.Now().UTC()
	if *nowFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
		now = parsed.UTC()
	}

	switch *engine {
	case "unlock":
		eng := scheduler.NewUnlockEngine(database, database, database, nil, logger)
		n, err := eng.RunUnlockTick(ctx, now)
		if err != nil {
			return err
		}
		fmt.Printf("unlocked %d lesson(s)\n", n)
	case "reminder", "support":
		// Manual sending ticks use the real gateways and the same dedupe
		// keys as the daemon, so they cannot double-send.
		email := notify.NewSMTPGateway(cfg.SMTP, logger)
		sms := notify.NewRESTSMSGateway(cfg.SMS, logger)
		gateway := notify.NewDispatcher(email, sms, cfg.Scheduler.NotifyRatePerSecond, cfg.Scheduler.NotifyBurst, logger)

		var dedupe scheduler.DedupeStore
		if cfg.Redis.Address != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer rdb.Close()
			dedupe = scheduler.NewRedisDedupe(rdb, cfg.DedupeTTL())
		}

		if *engine == "reminder" {
			eng := scheduler.NewReminderEngine(database, database, database, database, gateway, dedupe, nil, logger)
			n, err := eng.RunReminderTick(ctx, now)
			if err != nil {
				return err
			}
			fmt.Printf("notified %d user(s)\n", n)
			break
		}

		eng := scheduler.NewSupportEngine(database, database, database, gateway, dedupe,
			cfg.Scheduler.SupportMinMisses, nil, logger)
		n, err := eng.RunSupportTick(ctx, now)
		if err != nil {
			return err
		}
		fmt.Printf("sent support email to %d user(s)\n", n)
	default:
		return fmt.Errorf("unknown engine %q", *engine)
	}
	return nil
}

func runExport(ctx context.Context, database *db.DB, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "progress.xlsx", "output file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := export.BuildProgress(ctx, database)
	if err != nil {
		return err
	}
	f, err := export.Workbook(p)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(*out); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}
