package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/natsrelay"
	"live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "create a sample quiz on startup")
	return cmd
}

// backends holds the storage and relay clients chosen by configuration.
type backends struct {
	quizzes  app.QuizRepository
	sessions app.SessionRepository
	sinks    []app.EventSink
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string, seed bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	configureLogging(cfg.Log.Level)
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	service := app.NewQuizService(b.sessions, b.quizzes, app.Options{
		CloseSkew: config.TTLDuration(cfg.Quiz.CloseSkew, app.DefaultCloseSkew),
		Policy:    app.SessionPolicy{SingleAttempt: cfg.Quiz.SingleAttempt},
		Sinks:     b.sinks,
	})
	if seed {
		if err := seedSampleQuiz(ctx, service); err != nil {
			return err
		}
	}

	api := transport.NewAPI(service, transport.APIOptions{
		AdminKey:       cfg.Server.AdminKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PingMessage:    os.Getenv("PING_MESSAGE"),
		Heartbeat:      config.TTLDuration(cfg.Quiz.Heartbeat, transport.DefaultHeartbeat),
	})
	if cfg.Server.AdminKey == "" {
		log.Warn().Msg("no admin key configured, host endpoints are open")
	}

	// No WriteTimeout: SSE responses stay open for the whole quiz.
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	ok := false
	defer func() {
		if !ok {
			b.close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, err
		}
	}

	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.quizzes = postgres.NewQuizRepository(pool)
		log.Info().Msg("using postgres quiz repository")
	case redisClient != nil:
		b.quizzes = redisstore.NewQuizRepository(redisClient, 0)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis quiz repository")
	default:
		b.quizzes = memory.NewQuizRepository()
		log.Info().Msg("using in-memory quiz repository")
	}

	if redisClient != nil {
		b.sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		b.sessions = memory.NewSessionStore()
	}

	if cfg.NATS.URL != "" {
		relay, err := natsrelay.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = relay.Close() })
		b.sinks = append(b.sinks, relay)
		log.Info().Str("url", cfg.NATS.URL).Str("subject_prefix", cfg.NATS.SubjectPrefix).Msg("relaying quiz events to NATS")
	}

	ok = true
	return b, nil
}

// seedSampleQuiz creates a small demo quiz and logs its join code.
func seedSampleQuiz(ctx context.Context, service *app.QuizService) error {
	quiz, err := service.CreateQuiz(ctx, domain.QuizInput{
		Title: "Warm-up",
		Questions: []domain.QuestionInput{
			{
				Text:     "What is 2 + 2?",
				TimerSec: 20,
				Options: []domain.OptionInput{
					{Text: "3"},
					{Text: "4", Correct: true},
					{Text: "5"},
				},
			},
			{
				Text:     "Which planet is known as the Red Planet?",
				TimerSec: 20,
				Options: []domain.OptionInput{
					{Text: "Mars", Correct: true},
					{Text: "Venus"},
					{Text: "Jupiter"},
				},
			},
		},
	})
	if err != nil {
		return err
	}
	log.Info().Str("quiz_id", quiz.ID).Str("code", quiz.Code).Msg("seeded sample quiz")
	return nil
}
