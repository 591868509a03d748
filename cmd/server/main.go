// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	apiconnect "github.com/osa030/shinonome/internal/api/connect"
	"github.com/osa030/shinonome/internal/app/command"
	"github.com/osa030/shinonome/internal/app/filter"
	"github.com/osa030/shinonome/internal/app/notification"
	"github.com/osa030/shinonome/internal/app/playback"
	"github.com/osa030/shinonome/internal/infra/audio"
	"github.com/osa030/shinonome/internal/infra/config"
	"github.com/osa030/shinonome/internal/infra/discord"
	"github.com/osa030/shinonome/internal/infra/logger"
	"github.com/osa030/shinonome/internal/infra/media"
)

var (
	app        = kingpin.New("shinonome", "Discord music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	logJSON    = app.Flag("log-json", "Log JSON lines to stdout instead of colored text").Bool()

	listFiltersCmd = app.Command("list-filters", "List available admission filters and exit")
	listSourcesCmd = app.Command("list-sources", "List available media sources and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))
	switch cmd {
	case listFiltersCmd.FullCommand():
		printFilters()
		return
	case listSourcesCmd.FullCommand():
		printSources()
		return
	}

	loggerConfig := logger.Config{Level: "info", File: *logfile, JSON: *logJSON}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %+v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %+v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run wires every component and blocks until SIGINT/SIGTERM.
func run(cfg *config.Config) error {
	chain, err := filter.Build(cfg.EnabledFilters())
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}
	for _, f := range chain.Filters() {
		zlog.Info().Msgf("admission filter enabled: %s", f.Name())
	}

	specs := make([]media.SourceSpec, 0, len(cfg.Media.Sources))
	for _, s := range cfg.Media.Sources {
		specs = append(specs, media.SourceSpec{Type: s.Type, Settings: s.Settings})
	}
	resolver, err := media.NewResolverFromSpecs(specs, media.Options{
		Proxy:   cfg.Media.Proxy,
		Timeout: cfg.ResolveTimeout(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create media resolver")
	}
	zlog.Info().Msgf("media sources: %s", strings.Join(resolver.Sources(), ", "))

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	notifier := discord.NewNotifier(session)
	voice := discord.NewVoice(session, resolver,
		audio.FFmpeg{Path: cfg.Media.FFmpegPath},
		audio.NewOpusEncoderFunc(cfg.Media.Bitrate))

	manager := playback.NewManager(playback.Config{
		DefaultVolume:    float64(cfg.Playback.DefaultVolumePercent) / 100,
		MaxVolumePercent: cfg.Playback.MaxVolumePercent,
		SkipThreshold:    cfg.Playback.SkipThreshold,
		StallCheck:       cfg.StallCheck(),
	}, voice, notifier, chain, cfg.Playback.EventBuffer)

	registry, err := buildRegistry(cfg, manager, discord.NewDirectory(session.State))
	if err != nil {
		return err
	}
	dispatcher := command.NewDispatcher(registry, cfg.Discord.Prefix, cfg.GetMessage)
	bot := discord.NewBot(session, dispatcher, notifier, cfg.Discord.Presence)

	events := notification.NewManager()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events.Run(gctx, manager.Events())
		return nil
	})

	var server *http.Server
	if cfg.Server.Enabled {
		server = newAdminServer(cfg, manager, events)
		g.Go(func() error {
			zlog.Info().Msgf("Starting admin server: addr=%s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "admin server")
			}
			return nil
		})
	}

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	<-gctx.Done()
	zlog.Info().Msg("Shutting down...")

	// Rooms leave their voice channels before the gateway goes away
	manager.Close()
	if err := bot.Close(); err != nil {
		zlog.Warn().Err(err).Msg("gateway close failed")
	}

	events.Close()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown admin server: %v", err)
		}
	}
	stop()

	err = g.Wait()
	zlog.Info().Msg("Bot stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return err
}

// buildRegistry registers the music commands (guild only), the general commands, copypastas and help.
func buildRegistry(cfg *config.Config, manager *playback.Manager, dir command.Directory) (*command.Registry, error) {
	common := []command.Middleware{command.Logging()}
	if cfg.RateLimit.Enabled {
		limiter := command.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, cfg.Messages.RateLimited)
		common = append(common, limiter.Middleware())
	}
	guildOnly := append(append([]command.Middleware{}, common...), command.GuildOnly())

	registry := command.NewRegistry()
	if err := registry.Register(guildOnly, command.NewMusic(manager, dir).Commands()...); err != nil {
		return nil, err
	}
	if err := registry.Register(common, command.Misc(dir)...); err != nil {
		return nil, err
	}
	if err := registry.Register(common, command.Copypasta(cfg.Copypasta)...); err != nil {
		return nil, errors.Wrap(err, "copypasta names must not shadow commands")
	}
	if err := registry.Register(common, command.Help(registry, cfg.Discord.Description, cfg.Discord.Prefix)); err != nil {
		return nil, err
	}
	return registry, nil
}

// newAdminServer serves the admin API over h2c so streaming works without TLS.
func newAdminServer(cfg *config.Config, manager *playback.Manager, events *notification.Manager) *http.Server {
	svc := apiconnect.NewAdminService(manager, events)
	path, handler := svc.Handler(connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// printFilters prints available filters.
func printFilters() {
	registered := filter.GetRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// printSources prints available media source types.
func printSources() {
	names := make([]string, 0, len(media.SourceTypes))
	for name := range media.SourceTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Media Sources:")
	for _, name := range names {
		fmt.Printf("  %-10s - %s\n", name, media.SourceTypes[name])
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))
	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
