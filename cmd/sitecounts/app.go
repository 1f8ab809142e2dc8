package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dfryer1193/sitecounts/blog/application"
	"github.com/dfryer1193/sitecounts/blog/persistence"
	"github.com/dfryer1193/sitecounts/internal/config"
	"github.com/dfryer1193/sitecounts/shared/block"
	"github.com/dfryer1193/sitecounts/shared/db"
	"github.com/dfryer1193/sitecounts/shared/db/sqlite"
	"github.com/dfryer1193/sitecounts/shared/i18n"
	"github.com/rs/zerolog/log"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	database   db.Database
	posts      *persistence.SQLitePostRepository
	types      *persistence.SQLitePostTypeRepository
	translator *i18n.Translator
	registry   *block.Registry
	importer   *application.ImportService
	loc        *time.Location
}

func newApp(cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: cfg.Database.Path})
	if err := database.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &app{
		database:   database,
		posts:      persistence.NewPostRepository(database.DB(), loc),
		types:      persistence.NewPostTypeRepository(database.DB()),
		translator: i18n.NewTranslator(cfg.Site.Locale),
		registry:   block.NewRegistry(),
		loc:        loc,
	}

	a.importer = application.NewImportService(a.posts, a.types, application.NewMarkdownRenderer(cfg.Site.BaseURL), loc)

	var opts []application.SiteCountsOption
	if cfg.Blocks.MetadataDir != "" {
		opts = append(opts, application.WithMetadataDir(os.DirFS(cfg.Blocks.MetadataDir), "."))
	}
	siteCounts := application.NewSiteCountsBlock(a.types, a.posts, a.posts, a.translator, opts...)
	if err := siteCounts.Register(a.registry); err != nil {
		database.Close()
		return nil, err
	}

	log.Info().
		Str("database", cfg.Database.Path).
		Str("locale", a.translator.Language().String()).
		Str("timezone", loc.String()).
		Strs("blocks", a.registry.Names()).
		Msg("Application initialized")

	return a, nil
}

func (a *app) Close() {
	if err := a.database.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}
}
