// Package main provides the entry point for the Rookery Counter application.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"rookery-counter/internal/config"
	"rookery-counter/internal/db"
	"rookery-counter/internal/logging"
	"rookery-counter/internal/session"
	"rookery-counter/internal/store"
	"rookery-counter/ui/mainwindow"
	"rookery-counter/ui/prefs"

	"fyne.io/fyne/v2/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rookery-counter: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, cleanup, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	ctx := context.Background()
	support := store.NewSupportStore(conn)

	categories, err := support.Categories(ctx, cfg.Survey.Species)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	if len(categories) == 0 {
		logger.Warn("no categories defined for species", "species", cfg.Survey.Species)
	}

	siteNames, err := support.LocalSiteNames(ctx, cfg.Survey.Site)
	if err != nil {
		return fmt.Errorf("failed to load local sites: %w", err)
	}

	now := time.Now()
	date := now.Year()*10000 + int(now.Month())*100 + now.Day()
	sess := session.New(cfg, date, now.Format("150405"))
	sess.Categories = categories
	if err := sess.Survey.Valid(); err != nil {
		return err
	}

	logger.Info("starting count session",
		"year", sess.Survey.Year,
		"site", sess.Survey.Site,
		"species", sess.Survey.Species,
		"count_type", sess.Survey.CountType,
		"creator", sess.Survey.Creator)

	userPrefs := prefs.Load()

	fyneApp := app.New()
	win := mainwindow.New(fyneApp, sess, conn, userPrefs, cfg.Photos.Root, siteNames)

	if cfg.Photos.Root != "" {
		if err := win.LoadFolder(cfg.Photos.Root); err != nil {
			slog.Warn("failed to load photo folder", "dir", cfg.Photos.Root, "error", err)
		}
	}

	win.ShowAndRun()
	return nil
}
