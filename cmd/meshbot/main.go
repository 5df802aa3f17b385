// Command meshbot runs the MeshCore gateway bot: it connects to a companion
// radio, dispatches commands, and bridges selected channels and DMs per the
// loaded INI configuration.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meshbot/internal/bus"
	"meshbot/internal/capture"
	"meshbot/internal/catalog"
	"meshbot/internal/config"
	"meshbot/internal/dispatch"
	"meshbot/internal/logging"
	"meshbot/internal/message"
	"meshbot/internal/persistence"
	"meshbot/internal/plugins"
	"meshbot/internal/protocol"
	"meshbot/internal/radio"
	"meshbot/internal/ratelimit"
	"meshbot/internal/rf"
	"meshbot/internal/scheduler"
	"meshbot/internal/topology"
	"meshbot/internal/tracker"
	"meshbot/internal/transport"
	"meshbot/internal/translate"
)

func main() {
	configPath := flag.String("config", "config.ini", "path to the bot's INI configuration file")
	dbPath := flag.String("db", "meshbot.db", "path to the SQLite state database")
	clearDatabase := flag.Bool("clear-database", false, "wipe the bot's stored state (contacts, paths, stats, stream) and exit, without deleting the database file")
	validateOnly := flag.Bool("validate-config", false, "validate the configuration file, print any issues to stderr and exit")
	flag.Parse()

	if *validateOnly {
		issues, err := config.ValidateFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		for _, issue := range issues {
			fmt.Fprintln(os.Stderr, issue.String())
		}
		if config.HasErrors(issues) {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	if *clearDatabase {
		if err := runClearDatabase(*dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "clear database: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("database cleared")
		return
	}

	logManager := logging.NewManager()
	if err := logManager.Configure(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "configure logging: %v\n", err)
		os.Exit(1)
	}
	defer logManager.Close()

	log := logManager.Logger("meshbot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, *dbPath, logManager); err != nil {
		log.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// runClearDatabase is the headless equivalent of the desktop app's "clear
// database" menu action: it wipes every stored-state table without
// deleting the database file, then exits without starting the bot.
func runClearDatabase(dbPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := persistence.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return persistence.ClearDatabase(ctx, db)
}

// staticChannelResolver maps configured channel names to device channel
// indexes by declaration order — the companion firmware assigns indexes in
// the order channels were added, which for the bot's own monitored set is
// the order they're listed in [Channels].
type staticChannelResolver struct {
	indexes map[string]int
}

func newStaticChannelResolver(names []string) *staticChannelResolver {
	r := &staticChannelResolver{indexes: make(map[string]int, len(names))}
	for i, name := range names {
		r.indexes[name] = i
	}
	return r
}

func (r *staticChannelResolver) Resolve(name string) (int, bool) {
	idx, ok := r.indexes[name]
	return idx, ok
}

func run(ctx context.Context, cfg config.AppConfig, dbPath string, logManager *logging.Manager) error {
	log := logManager.Logger("meshbot")

	db, err := persistence.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.CompanionPurge.Enabled {
		if _, err := persistence.PurgeOldestContacts(ctx, db, cfg.CompanionPurge.MaxContacts, time.Now().Unix()); err != nil {
			log.Warn("companion purge failed", "error", err)
		}
	}

	contactRepo := persistence.NewContactRepo(db)
	graphRepo := persistence.NewGraphRepo(db)
	pathRepo := persistence.NewPathRepo(db)
	statsRepo := persistence.NewStatsRepo(db)
	streamRepo := persistence.NewStreamRepo(db)
	channelOpsRepo := persistence.NewChannelOpsRepo(db)
	kvRepo := persistence.NewKVRepo(db)

	writerQueue := persistence.NewWriterQueue(logManager.Logger("persistence"), 0)
	writerQueue.Start(ctx)
	writerQueue.Enqueue("bot_start_time", func(writeCtx context.Context) error {
		return kvRepo.SetBotStartTime(writeCtx, time.Now())
	})

	msgBus := bus.New(logManager.Logger("bus"))
	defer msgBus.Close()

	rfCache := rf.NewCache(time.Duration(cfg.Bot.RFDataTimeoutSeconds*float64(time.Second)), rf.DefaultMaxEntries)

	translator, err := translate.New(cfg.Localization.Language, cfg.Localization.TranslationPath, logManager.Logger("translate"))
	if err != nil {
		log.Warn("translator init failed, falling back to message IDs", "error", err)
	}

	tr := transportFor(cfg.Connection)
	codec := radio.NewMeshCoreCodec()
	driver := radio.NewDriver(logManager.Logger("radio"), tr, codec, msgBus, rfCache, cfg.Bot.Name)

	trk := tracker.New("", streamRepo)

	channelResolver := newStaticChannelResolver(cfg.Channels.MonitorChannels)

	globalLimiter := ratelimit.NewGlobal(time.Duration(cfg.Bot.RateLimitSeconds * float64(time.Second)))
	txLimiter := ratelimit.NewTX(time.Duration(cfg.Bot.BotTXRateLimitSeconds * float64(time.Second)))
	perUserLimiter := ratelimit.NewPerUser(time.Duration(cfg.Bot.PerUserRateLimitSeconds*float64(time.Second)), 1000)

	replyCfg := dispatch.ReplyConfig{
		TXDelay:                 time.Duration(cfg.Bot.TXDelayMS) * time.Millisecond,
		ChannelRetryEnabled:     cfg.Bot.ChannelRetryEnabled,
		ChannelRetryEchoWindow:  time.Duration(cfg.Bot.ChannelRetryEchoWindow * float64(time.Second)),
		ChannelRetryMaxAttempts: cfg.Bot.ChannelRetryMaxAttempts,
	}
	reply := dispatch.NewReply(driver, globalLimiter, txLimiter, perUserLimiter, trk, replyCfg, logManager.Logger("dispatch"))

	adminPubkeys := make(map[string]bool, len(cfg.AdminPubkeys))
	for _, pk := range cfg.AdminPubkeys {
		adminPubkeys[strings.ToLower(pk)] = true
	}

	registry := dispatch.NewRegistry(logManager.Logger("dispatch"))
	registry.Register(plugins.NewPing())

	captureTarget := capture.Target(capture.NewStoreTarget(streamRepo))
	internetChecker := dispatch.NewInternetChecker(nil)

	dispatchCfg := dispatch.Config{
		CommandPrefix:   cfg.Bot.CommandPrefix,
		ChannelKeywords: cfg.Channels.ChannelKeywords,
		PlainKeywords:   cfg.Keywords,
		AdminPubkeys:    adminPubkeys,
	}

	var translatorAdapter dispatch.Translator
	if translator != nil {
		translatorAdapter = translator
	}

	dispatcher := dispatch.New(registry, dispatchCfg, reply, channelResolver, statsRepo, captureTarget, translatorAdapter, internetChecker, logManager.Logger("dispatch"))

	greeter := plugins.NewGreeter("", reply, channelResolver, logManager.Logger("plugins"))

	handlerCfg := message.DefaultConfig()
	handlerCfg.MonitorChannels = cfg.Channels.MonitorChannels
	handlerCfg.RespondToDMs = cfg.Bot.RespondToDMs
	handlerCfg.BannedUserPrefixes = cfg.BannedUsers
	handler := message.NewHandler(handlerCfg, time.Now(), driver, rfCache, statsRepo, greeter)

	learner := topology.NewLearner(pathRepo, graphRepo, contactRepo, 7*24*time.Hour, "", "")

	schedulerLog := logManager.Logger("scheduler")
	scheduledEntries := scheduler.ParseScheduledMessages(cfg.ScheduledMessages, schedulerLog)
	scheduledRunner := scheduler.NewScheduledMessageRunner(scheduledEntries, reply, channelResolver, placeholderFormatter(contactRepo), schedulerLog)
	advertRunner := scheduler.NewAdvertRunner(time.Duration(cfg.Bot.AdvertIntervalHours*float64(time.Hour)), driver, schedulerLog)
	gcRunner := scheduler.NewGCRunner(trk)
	channelOpsPoller := scheduler.NewChannelOpsPoller(channelOpsRepo, driver, schedulerLog)
	serviceSupervisor := scheduler.NewServiceSupervisor([]dispatch.Service{driver}, time.Duration(cfg.Bot.ServiceRestartBackoffSeconds*float64(time.Second)), schedulerLog)

	// No feed plugins are registered yet — feed ingest business logic is out
	// of scope — but the shared poll schedule itself is wired so a future
	// feed plugin only has to implement scheduler.Feed to join it.
	feedPoller := scheduler.NewFeedPoller(nil, 5*time.Minute, schedulerLog)

	go scheduledRunner.Run(ctx)
	go advertRunner.Run(ctx)
	go gcRunner.Run(ctx)
	go channelOpsPoller.Run(ctx)
	go feedPoller.Run(ctx)
	go dispatcher.RunCooldownQueue(ctx)

	// serviceSupervisor.Run starts and health-monitors every supervised
	// service, including the radio driver — it must be the only caller of
	// driver.Start, or the outbox/reader/keepalive loops would double up.
	go serviceSupervisor.Run(ctx)

	events := msgBus.Subscribe(radio.TopicContactMessage)
	channelEvents := msgBus.Subscribe(radio.TopicChannelMessage)
	defer msgBus.Unsubscribe(events)
	defer msgBus.Unsubscribe(channelEvents)

	go pumpContactMessages(ctx, events, handler, dispatcher, learner, writerQueue, log)
	go pumpChannelMessages(ctx, channelEvents, handler, dispatcher, learner, writerQueue, log)

	waitForShutdown(ctx, log, serviceSupervisor, driver, graphRepo)
	return nil
}

func transportFor(cfg config.ConnectionConfig) transport.Transport {
	switch cfg.Connector {
	case config.ConnectorSerial:
		return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud)
	case config.ConnectorBLE:
		return transport.NewBluetoothTransport(cfg.BLEAddress, "")
	default:
		return transport.NewIPTransport(cfg.TCPHost, cfg.TCPPort)
	}
}

func placeholderFormatter(repo catalog.Repository) scheduler.PlaceholderFormatter {
	return func(template string) string {
		info, err := catalog.BuildMeshInfo(context.Background(), repo, time.Now())
		if err != nil {
			return template
		}
		replacer := strings.NewReplacer(
			"{total_contacts}", fmt.Sprintf("%d", info.TotalContacts),
			"{total_repeaters}", fmt.Sprintf("%d", info.TotalRepeaters),
			"{new_companions_7d}", fmt.Sprintf("%d", info.NewCompanions7d),
		)
		return replacer.Replace(template)
	}
}

func pumpContactMessages(ctx context.Context, sub bus.Subscription, handler *message.Handler, d *dispatch.Dispatcher, learner *topology.Learner, writerQueue *persistence.WriterQueue, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			evt, ok := raw.(radio.ContactMessageEvent)
			if !ok {
				continue
			}
			handleIncoming(ctx, handler, d, learner, writerQueue, message.RawEvent{
				Content:    evt.Content,
				SenderName: evt.SenderName,
				IsDM:       true,
				Timestamp:  evt.Timestamp,
				Decoded:    evt.Decoded,
				RawHex:     evt.RawHex,
				PayloadHex: evt.PayloadHex,
			}, log)
		}
	}
}

func pumpChannelMessages(ctx context.Context, sub bus.Subscription, handler *message.Handler, d *dispatch.Dispatcher, learner *topology.Learner, writerQueue *persistence.WriterQueue, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			evt, ok := raw.(radio.ChannelMessageEvent)
			if !ok {
				continue
			}
			channel := evt.Channel
			handleIncoming(ctx, handler, d, learner, writerQueue, message.RawEvent{
				Content:    evt.Content,
				Channel:    &channel,
				Timestamp:  evt.Timestamp,
				Decoded:    evt.Decoded,
				RawHex:     evt.RawHex,
				PayloadHex: evt.PayloadHex,
			}, log)
		}
	}
}

// handleIncoming processes one decoded message, learning its routing path
// through the single-writer queue (so a slow topology write never blocks
// the hot dispatch path) before handing it to the dispatcher.
func handleIncoming(ctx context.Context, handler *message.Handler, d *dispatch.Dispatcher, learner *topology.Learner, writerQueue *persistence.WriterQueue, raw message.RawEvent, log *slog.Logger) {
	msg, outcome := handler.Process(ctx, raw, time.Now())
	if outcome != message.OutcomeProcessed {
		return
	}

	if raw.Decoded != nil && len(raw.Decoded.PathNodes) > 0 {
		typ := topology.PacketMessage
		if raw.Decoded.PayloadType == protocol.PayloadTrace {
			typ = topology.PacketTrace
		}
		pathHex := hex.EncodeToString(raw.Decoded.PathBytes)
		writerQueue.Enqueue("topology_learn_path", func(writeCtx context.Context) error {
			return learner.LearnPath(writeCtx, raw.Decoded.PathNodes, pathHex, msg.SenderPubkey, typ, msg.Timestamp)
		})
	}

	if _, err := d.Dispatch(ctx, msg); err != nil {
		log.Warn("dispatch failed", "error", err)
	}
}

func waitForShutdown(ctx context.Context, log *slog.Logger, supervisor *scheduler.ServiceSupervisor, driver *radio.Driver, graphRepo *persistence.GraphRepo) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := driver.Stop(shutdownCtx); err != nil {
		log.Warn("radio disconnect failed", "error", err)
	}
	if _, err := graphRepo.PruneOlderThan(shutdownCtx, time.Now().Add(-7*24*time.Hour)); err != nil {
		log.Warn("final graph flush failed", "error", err)
	}
}
