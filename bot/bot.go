package bot

import (
	"discord-moderator/audit"
	"discord-moderator/classifier"
	"discord-moderator/config"
	"discord-moderator/feed"
	"discord-moderator/model"
	"discord-moderator/moderation"
	"discord-moderator/utils"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/process"
)

const discordRequestTimeout = 20 * time.Second

var ErrAlreadyRunning = errors.New("bot is already running")
var ErrNotRunning = errors.New("bot is not running")

type Bot struct {
	Session            *discordgo.Session
	Platform           *Platform
	Store              *config.Store
	Classifier         *classifier.Client
	Context            *classifier.Context
	Ledger             *moderation.Ledger
	Bans               *moderation.BanRequests
	Pipeline           *moderation.Pipeline
	Audit              *audit.Sink
	AuditStore         *audit.Store
	Feed               *feed.Broker
	Commands           []*discordgo.ApplicationCommand
	CommandHandlers    map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)
	RegisteredCommands []*discordgo.ApplicationCommand

	config    *model.Config
	scheduler *Scheduler
	proc      *process.Process

	lifecycle sync.Mutex // serializes Start and Stop
	mu        sync.Mutex
	running   bool
	startedAt time.Time
}

func (b *Bot) GetConfig() *model.Config {
	return b.config
}

func (b *Bot) GetSession() *discordgo.Session {
	return b.Session
}

// New wires the moderation pipeline to a discordgo session. The gateway
// connection is opened by Start.
func New(cfg *model.Config) (*Bot, error) {
	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := config.OpenStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	auditStore, err := audit.OpenStore(filepath.Join(cfg.DataDir, "audit.db"))
	if err != nil {
		return nil, err
	}

	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		auditStore.Close()
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent | discordgo.IntentsDirectMessages
	dg.StateEnabled = true
	dg.Client = utils.NewHTTPClient("discord", discordRequestTimeout)

	b := &Bot{
		Session:    dg,
		Platform:   NewPlatform(dg),
		Store:      store,
		AuditStore: auditStore,
		Feed:       feed.NewBroker(),
		Ledger:     moderation.NewLedger(),
		Context:    classifier.NewContext(),
		config:     cfg,
	}
	b.Audit = audit.NewSink(auditStore, b.Feed, audit.DefaultBuffer)
	b.Classifier = classifier.New(classifier.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		Timeout:    cfg.ClassifierTimeout,
		HTTPClient: utils.NewHTTPClient("classifier", 0),
	})
	b.Bans = moderation.NewBanRequests(b.Platform, b.Audit, b)
	executor := moderation.NewExecutor(b.Platform, b.Ledger, b.Audit, b.Bans)
	b.Pipeline = moderation.NewPipeline(store, b.Classifier, b.Context, b.Ledger, executor, b.Audit)
	b.scheduler = NewScheduler(b)

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		b.proc = proc
	} else {
		log.Printf("Process stats unavailable: %v", err)
	}
	return b, nil
}

// logChannel prefers the channel configured from the dashboard over the environment.
func (b *Bot) logChannel() string {
	if id := b.Store.GetSettings().LogChannelID; id != "" {
		return id
	}
	return b.config.LogChannelID
}

// LogWarn posts a warning to the log channel.
func (b *Bot) LogWarn(module, operation, info string) {
	utils.LogWarn(b.Session, b.logChannel(), module, operation, info)
}

func (b *Bot) LogInfo(module, operation, info string) {
	utils.LogInfo(b.Session, b.logChannel(), module, operation, info)
}

func (b *Bot) LogError(module, operation, info string) {
	utils.LogError(b.Session, b.logChannel(), module, operation, info)
}

func (b *Bot) botEvent(action, message string) {
	b.Audit.Record(model.AuditEntry{Type: model.AuditBotEvent, Action: action, Message: message})
}

// Start opens the gateway connection and registers slash commands.
func (b *Bot) Start() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()
	if b.IsRunning() {
		return ErrAlreadyRunning
	}
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	b.mu.Lock()
	b.running = true
	b.startedAt = time.Now()
	b.mu.Unlock()

	b.registerCommands()
	b.scheduler.Start()

	log.Println("Bot is now running.")
	b.LogInfo("System", "Startup", "Moderation bot has started.")
	b.botEvent("started", "gateway connection opened")
	b.publishStatus()
	return nil
}

// Stop closes the gateway connection. In-memory state (warnings, pending bans)
// is kept so a later Start resumes where it left off.
func (b *Bot) Stop() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()
	if !b.IsRunning() {
		return ErrNotRunning
	}
	b.scheduler.Stop()
	b.LogInfo("System", "Shutdown", "Moderation bot is stopping.")
	if err := b.Session.Close(); err != nil {
		log.Printf("Error closing session: %v", err)
	}
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	log.Println("Bot stopped.")
	b.botEvent("stopped", "gateway connection closed")
	b.publishStatus()
	return nil
}

func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bot) registerCommands() {
	if len(b.Commands) == 0 || b.Session.State.User == nil {
		return
	}
	appID := b.config.AppID
	if appID == "" {
		appID = b.Session.State.User.ID
	}
	log.Printf("Registering %d commands...", len(b.Commands))
	registered, err := b.Session.ApplicationCommandBulkOverwrite(appID, "", b.Commands)
	if err != nil {
		log.Printf("cannot register commands: %v", err)
		return
	}
	b.RegisteredCommands = registered
}

// Status snapshots the bot for the dashboard and the live feed.
func (b *Bot) Status() model.Status {
	b.mu.Lock()
	running, startedAt := b.running, b.startedAt
	b.mu.Unlock()

	st := model.Status{
		Running:     running,
		PendingBans: b.Bans.Len(),
		WarnedUsers: b.Ledger.Len(),
		Goroutines:  runtime.NumGoroutine(),
		Timestamp:   time.Now(),
	}
	if running {
		st.StartedAt = startedAt
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
		if u := b.Session.State.User; u != nil {
			st.Username = u.Username
		}
		st.Guilds = len(b.Platform.Guilds())
	}
	if b.proc != nil {
		if mem, err := b.proc.MemoryInfo(); err == nil {
			st.MemoryMB = mem.RSS / 1024 / 1024
		}
		if cpu, err := b.proc.CPUPercent(); err == nil {
			st.CPUPercent = cpu
		}
	}
	return st
}

func (b *Bot) publishStatus() {
	b.Feed.Publish(feed.Event{Kind: feed.EvtKindStatus, Payload: b.Status()})
}

// Close stops the bot if needed and flushes the audit log.
func (b *Bot) Close() {
	log.Println("Gracefully shutting down.")
	if b.IsRunning() {
		b.Stop()
	}
	b.Audit.Close()
	if err := b.AuditStore.Close(); err != nil {
		log.Printf("Error closing audit database: %v", err)
	}
}
