package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/db"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|redo|version|create|validate")
	dir := flag.String("dir", "", "goose migrations directory (empty runs the migrations built into this binary)")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// create and validate only touch files, so they run without config.
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		exitOnErr(ctx, logg, "create migration", err)
		fmt.Println("created migration:", path)
		return
	case "validate":
		exitOnErr(ctx, logg, "validate migrations", migrate.ValidateDir(*dir))
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	exitOnErr(ctx, logg, "load config", err)
	if cfg.DB.IsSQLite() {
		exitOnErr(ctx, logg, "check driver", fmt.Errorf("goose migrations target postgres; sqlite schemas come from SHIFTLEDGER_AUTO_MIGRATE"))
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOnErr(ctx, logg, "connect database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOnErr(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "down", "status", "redo":
		err = migrate.Run(ctx, sqlDB, *dir, *cmd)
	case "version":
		err = migrate.MigrateToVersion(ctx, sqlDB, *dir, *version)
	default:
		err = fmt.Errorf("unknown -cmd value %q", *cmd)
	}
	if err != nil {
		dbClient.Close()
	}
	exitOnErr(ctx, logg, "goose "+*cmd, err)
	logg.Info(ctx, "migrate finished")
}

func exitOnErr(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("migrate failed: %s", step), err)
	os.Exit(1)
}
