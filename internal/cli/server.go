package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/auth"
	"quiz-battle-service/internal/bot"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	pgstore "quiz-battle-service/internal/infra/postgres"
	"quiz-battle-service/internal/infra/rabbit"
	infraredis "quiz-battle-service/internal/infra/redis"
	transport "quiz-battle-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Question content and study sets.
	var (
		loader    memory.QuestionLoader
		studySets app.StudySetRepository
	)
	if pool != nil {
		pgLoader := pgstore.NewQuestionLoader(pool)
		loader, studySets = pgLoader, pgLoader
	} else {
		bank := memory.NewStaticQuestionBank(sampleStudySets())
		loader, studySets = bank, bank
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = infraredis.NewQuestionCache(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionCache(loader, questionTTL)
	}

	// Rooms, slots and answers.
	var (
		rooms   app.RoomRepository
		slots   app.SlotRepository
		answers app.AnswerRepository
	)
	if cfg.Postgres.URL != "" {
		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		store := pgstore.NewStore(db)
		rooms, slots, answers = store.Rooms, store.Slots, store.Answers
	} else {
		store := memory.NewStore()
		rooms, slots, answers = store.Rooms, store.Slots, store.Answers
	}
	if cfg.Answers.Ledger == "redis" {
		ledger := infraredis.NewAnswerLedger(redisClient, config.TTLDuration(cfg.Answers.TTL, 6*time.Hour))
		answers = ledger
		rooms = ledgerRooms{RoomRepository: rooms, ledger: ledger}
	}

	hub := app.NewRoomHub()
	publishers := app.Publishers{hub}
	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		publishers = append(publishers, pub)
	}

	var tokens transport.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokens(cfg.Auth.JWTSecret)
	} else {
		log.Printf("auth.jwt_secret not set: trusting the userId query parameter")
	}

	accuracy := cfg.Bots.Accuracy
	if accuracy == 0 {
		accuracy = bot.DefaultAccuracy
	}

	service := app.NewBattleService(app.Dependencies{
		Rooms:     rooms,
		Slots:     slots,
		Answers:   answers,
		Questions: questions,
		StudySets: studySets,
		Passwords: auth.NewPasswordGate(cfg.Auth.BcryptCost),
		Names:     bot.NewNameGenerator(nil),
		Bots:      bot.NewSimulator(accuracy, nil),
		Events:    publishers,
	}, app.WithLogger(slog.Default()))

	identity := transport.NewIdentity(tokens)
	wsHandler := transport.NewWSHandler(service, hub, identity)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	transport.NewRoomsHandler(service, identity).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz battle service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// ledgerRooms keeps a room's Redis answers tied to the room's lifetime: a new
// room starts with an empty hash and deleting the room drops it.
type ledgerRooms struct {
	app.RoomRepository
	ledger *infraredis.AnswerLedger
}

func (r ledgerRooms) Create(ctx context.Context, room *domain.Room) error {
	if err := r.RoomRepository.Create(ctx, room); err != nil {
		return err
	}
	// Room ids restart after a schema reset; answers left under a reused id are stale.
	if err := r.ledger.DeleteByRoom(ctx, room.ID); err != nil {
		return fmt.Errorf("clear stale answers: %w", err)
	}
	return nil
}

func (r ledgerRooms) Delete(ctx context.Context, id int64) error {
	if err := r.RoomRepository.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.ledger.DeleteByRoom(ctx, id); err != nil {
		slog.Warn("drop room answers", "roomId", id, "err", err)
	}
	return nil
}

// sampleStudySets provides a demo study set owned by "demo-host" for running
// without Postgres.
func sampleStudySets() ([]domain.StudySet, []domain.Question) {
	sets := []domain.StudySet{{ID: 1, OwnerID: "demo-host", Title: "World capitals"}}
	capitals := []struct {
		country, capital string
		wrong            [3]string
	}{
		{"France", "Paris", [3]string{"Lyon", "Marseille", "Nice"}},
		{"Japan", "Tokyo", [3]string{"Osaka", "Kyoto", "Sapporo"}},
		{"Canada", "Ottawa", [3]string{"Toronto", "Vancouver", "Montreal"}},
		{"Australia", "Canberra", [3]string{"Sydney", "Melbourne", "Perth"}},
		{"Brazil", "Brasília", [3]string{"Rio de Janeiro", "São Paulo", "Salvador"}},
		{"Kenya", "Nairobi", [3]string{"Mombasa", "Kisumu", "Nakuru"}},
		{"Norway", "Oslo", [3]string{"Bergen", "Trondheim", "Stavanger"}},
		{"Turkey", "Ankara", [3]string{"Istanbul", "Izmir", "Bursa"}},
		{"Vietnam", "Hanoi", [3]string{"Ho Chi Minh City", "Da Nang", "Hue"}},
		{"Morocco", "Rabat", [3]string{"Casablanca", "Marrakesh", "Fez"}},
	}
	questions := make([]domain.Question, 0, len(capitals))
	for i, c := range capitals {
		id := int64(i + 1)
		texts := slices.Insert(c.wrong[:], i%4, c.capital)
		options := make([]domain.Option, len(texts))
		for j, text := range texts {
			options[j] = domain.Option{ID: id*10 + int64(j) + 1, Text: text}
		}
		options[i%4].Correct = true
		options[i%4].Explanation = c.capital + " is the capital of " + c.country + "."
		questions = append(questions, domain.Question{
			ID:         id,
			StudySetID: 1,
			Text:       "What is the capital of " + c.country + "?",
			Options:    options,
		})
	}
	return sets, questions
}
