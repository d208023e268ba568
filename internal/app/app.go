package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	"github.com/IT-Nick/gatekeeper/internal/app/handlers/http/exam_failures_handler"
	"github.com/IT-Nick/gatekeeper/internal/app/handlers/http/review_action_handler"
	"github.com/IT-Nick/gatekeeper/internal/app/handlers/telegram/answer_handler"
	"github.com/IT-Nick/gatekeeper/internal/app/handlers/telegram/join_handler"
	"github.com/IT-Nick/gatekeeper/internal/app/handlers/telegram/open_answer_handler"
	"github.com/IT-Nick/gatekeeper/internal/app/handlers/telegram/review_handler"
	examsRepo "github.com/IT-Nick/gatekeeper/internal/domain/exams/repository"
	examsService "github.com/IT-Nick/gatekeeper/internal/domain/exams/service"
	msgRepo "github.com/IT-Nick/gatekeeper/internal/domain/messages/repository"
	msgService "github.com/IT-Nick/gatekeeper/internal/domain/messages/service"
	modService "github.com/IT-Nick/gatekeeper/internal/domain/moderation/service"
	promptsRepo "github.com/IT-Nick/gatekeeper/internal/domain/prompts/repository"
	reportsRepo "github.com/IT-Nick/gatekeeper/internal/domain/reports/repository"
	usersRepo "github.com/IT-Nick/gatekeeper/internal/domain/users/repository"
	usersService "github.com/IT-Nick/gatekeeper/internal/domain/users/service"
	"github.com/IT-Nick/gatekeeper/internal/i18n"
	"github.com/IT-Nick/gatekeeper/internal/infra/config"
	"github.com/IT-Nick/gatekeeper/internal/infra/events"
	"github.com/IT-Nick/gatekeeper/internal/infra/llm"
	"github.com/IT-Nick/gatekeeper/internal/infra/memory"
	"github.com/IT-Nick/gatekeeper/internal/infra/metrics"
	redisQueue "github.com/IT-Nick/gatekeeper/internal/infra/redis"
	"github.com/IT-Nick/gatekeeper/internal/infra/telegram"
	"github.com/IT-Nick/gatekeeper/internal/infra/timer"
	"github.com/IT-Nick/gatekeeper/middleware"
	"github.com/IT-Nick/gatekeeper/poller"
	pkghttp "github.com/IT-Nick/gatekeeper/pkg/http"
)

const shutdownTimeout = 10 * time.Second

// deadlineQueue очередь таймаутов: Redis или память процесса
type deadlineQueue interface {
	timer.Queue
	Cancel(ctx context.Context, sessionID int64) error
}

type Services struct {
	userService       *usersService.UserService
	messageService    *msgService.MessageService
	examService       *examsService.ExamService
	moderationService *modService.ModerationService
}

type Repositories struct {
	sessions *examsRepo.SessionRepository
	reports  *reportsRepo.ReportRepository
	prompts  *promptsRepo.PromptRepository
	users    *usersRepo.UserRepository
	messages *msgRepo.MessageRepository
}

type App struct {
	config *config.Config
	bot    *tele.Bot
	db     *pgxpool.Pool
	redis  *redis.Client
	server *http.Server

	exams     *config.ExamProvider
	gateway   *telegram.Gateway
	moderator *telegram.ChatModerator
	deadlines deadlineQueue
	publisher modService.EventPublisher
	amqp      *events.AMQPPublisher

	Repositories
	Services
}

// NewApp собирает зависимости бота по конфигурации
func NewApp(cfg *config.Config) (*App, error) {
	if err := i18n.Init(cfg.TelegramBot.Language); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	db, err := InitDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{
		config: cfg,
		db:     db,
		exams:  config.NewExamProvider(cfg.Exams, cfg.ManagedChats),
	}

	if err := app.initTransport(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initInfra(); err != nil {
		app.Close()
		return nil, err
	}
	app.initServices()

	return app, nil
}

// initTransport создает Telegram бота: long polling или webhook
func (app *App) initTransport() error {
	bot, err := tele.NewBot(tele.Settings{
		Token:  app.config.TelegramBot.Token,
		Poller: poller.NewPoller(app.config.TelegramBot),
		OnError: func(err error, c tele.Context) {
			slog.Error("telegram handler failed", "error", err)
		},
	})
	if err != nil {
		return fmt.Errorf("telebot.NewBot: %w", err)
	}
	app.bot = bot
	return nil
}

func (app *App) initInfra() error {
	if app.config.Redis.Enabled() {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.config.Redis.Addr,
			Password: app.config.Redis.Password,
			DB:       app.config.Redis.DB,
		})
		if err := app.redis.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		app.deadlines = redisQueue.NewDeadlineQueue(app.redis)
	} else {
		slog.Warn("redis is not configured, exam deadlines are kept in memory")
		app.deadlines = memory.NewDeadlineQueue()
	}

	if app.config.AMQP.URL != "" {
		publisher, err := events.NewAMQPPublisher(app.config.AMQP.URL, app.config.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect to amqp: %w", err)
		}
		app.amqp = publisher
		app.publisher = publisher
	} else {
		app.publisher = events.LogPublisher{}
	}

	app.moderator = telegram.NewChatModerator(app.bot, app.managedChats)
	return nil
}

// Функция для инициализации сервисов и репозиториев
func (app *App) initServices() {
	// Инициализация репозиториев
	app.sessions = examsRepo.NewSessionRepository(app.db)
	app.reports = reportsRepo.NewReportRepository(app.db)
	app.prompts = promptsRepo.NewPromptRepository(app.db)
	app.users = usersRepo.NewUserRepository(app.db)
	app.messages = msgRepo.NewMessageRepository(app.db)

	// Инициализация сервисов
	app.userService = usersService.NewUserService(app.users)
	app.messageService = msgService.NewMessageService(app.messages)
	app.gateway = telegram.NewGateway(app.bot, app.messageService)

	app.moderationService = modService.NewModerationService(modService.Dependencies{
		Chats:     app.moderator,
		Prompts:   app.prompts,
		Users:     app.users,
		Links:     app.moderator,
		Messenger: app.gateway,
		Reviews:   app.reports,
		Events:    app.publisher,
	})

	app.examService = examsService.NewExamService(examsService.Dependencies{
		Sessions:          app.sessions,
		Evaluator:         llm.New(app.config.LLM.BaseURL, app.config.LLM.APIKey, app.config.LLM.Model),
		Messenger:         app.gateway,
		Reports:           app.reports,
		Configs:           app.exams,
		Deadlines:         app.deadlines,
		Moderator:         app.moderationService,
		Events:            app.publisher,
		ReviewChatID:      app.config.TelegramBot.ReviewChatID,
		EvaluationTimeout: app.config.LLM.Timeout,
	})
}

// managedChats чаты, в которых действует блокировка: явный список и чаты с собственным экзаменом
func (app *App) managedChats() []int64 {
	chats := app.exams.ManagedChats()
	for chatID := range app.config.Exams.Chats {
		if !slices.Contains(chats, chatID) {
			chats = append(chats, chatID)
		}
	}
	return chats
}

// Moderation процедуры ручной проверки, используются командой review
func (app *App) Moderation() *modService.ModerationService {
	return app.moderationService
}

// bootstrapHandlersTelegram - регистрирует обработчики для бота
func (app *App) bootstrapHandlersTelegram() {
	app.bot.Use(middleware.Recover(), middleware.Logger())

	app.bot.Handle(tele.OnUserJoined, join_handler.NewJoinHandler(
		app.exams, app.examService, app.userService, app.moderator, app.prompts, app.gateway,
	).GetHandlerFunc())

	answers := answer_handler.NewAnswerHandler(app.examService)
	reviews := review_handler.NewReviewHandler(app.moderationService, app.moderator, app.messageService, app.config.TelegramBot.ReviewChatID)

	app.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		data := answer_handler.CleanCallbackData(c.Callback().Data)

		switch {
		case strings.HasPrefix(data, examsService.CallbackPrefix+":"):
			return answers.Handle(c)
		case strings.HasPrefix(data, modService.ReviewCallbackPrefix+":"):
			return reviews.Handle(c)
		}

		return c.Respond()
	})

	app.bot.Handle(tele.OnText, open_answer_handler.NewOpenAnswerHandler(app.examService, app.gateway).GetHandlerFunc())
}

// routes HTTP API модераторов
func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.Ping(r.Context()); err != nil {
			pkghttp.ErrorResponse(w, http.StatusServiceUnavailable, "database is unavailable")
			return
		}
		pkghttp.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	failures := exam_failures_handler.NewExamFailuresHandler(app.reports, app.exams)
	r.Route("/exam-failures", func(r chi.Router) {
		r.Use(pkghttp.BearerAuth(app.config.Server.AdminToken))
		r.Get("/", failures.List)
		r.Get("/{id}", failures.Get)
		r.Method(http.MethodPost, "/{id}/{action}", review_action_handler.NewReviewActionHandler(app.moderationService))
	})

	return r
}

// ListenAndServeHTTP запускает HTTP сервер и останавливает его при отмене контекста
func (app *App) ListenAndServeHTTP(ctx context.Context) error {
	app.server = &http.Server{
		Addr:              app.config.Server.Addr(),
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", "addr", app.server.Addr)
		errCh <- app.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.server.Shutdown(shutdownCtx)
	}
}

// ListenAndServeTelegram запускает бота до отмены контекста
func (app *App) ListenAndServeTelegram(ctx context.Context) error {
	app.bootstrapHandlersTelegram()

	done := make(chan struct{})
	go func() {
		defer close(done)
		slog.Info("starting telegram bot", "mode", app.config.TelegramBot.Mode, "bot", app.bot.Me.Username)
		app.bot.Start()
	}()

	select {
	case <-ctx.Done():
		app.bot.Stop()
		<-done
		return nil
	case <-done:
		return errors.New("telegram bot stopped unexpectedly")
	}
}

// ListenAndServeDeadlines восстанавливает таймауты активных сессий и закрывает истекшие
func (app *App) ListenAndServeDeadlines(ctx context.Context) error {
	sweeper := timer.NewSweeper(app.deadlines, app.examService, app.config.SweepInterval)

	deadlines, err := app.sessions.ListExpiring(ctx)
	if err != nil {
		return fmt.Errorf("failed to list exam deadlines: %w", err)
	}
	if err := sweeper.Restore(ctx, deadlines); err != nil {
		return fmt.Errorf("failed to restore exam deadlines: %w", err)
	}

	return sweeper.Run(ctx)
}

// ListenAndServe запускает бота, HTTP сервер и обработку таймаутов.
// Остановка любого из них останавливает остальные.
func (app *App) ListenAndServe(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.ListenAndServeTelegram(ctx); err != nil {
			return fmt.Errorf("failed to run Telegram bot: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := app.ListenAndServeHTTP(ctx); err != nil {
			return fmt.Errorf("failed to run HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := app.ListenAndServeDeadlines(ctx); err != nil {
			return fmt.Errorf("failed to run deadline sweeper: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close освобождает соединения
func (app *App) Close() {
	if app.amqp != nil {
		app.amqp.Close()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	if app.db != nil {
		app.db.Close()
	}
}
