package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/crypto/bcrypt"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/auth"
	"quiz-battle-service/internal/bot"
	"quiz-battle-service/internal/domain"
	pgstore "quiz-battle-service/internal/infra/postgres"
	pgmigrations "quiz-battle-service/internal/infra/postgres/migrations"
	infraredis "quiz-battle-service/internal/infra/redis"
)

func TestBattleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateAndSeed(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	loader := pgstore.NewQuestionLoader(pool)
	store := pgstore.NewStore(db)
	service := app.NewBattleService(app.Dependencies{
		Rooms:     store.Rooms,
		Slots:     store.Slots,
		Answers:   store.Answers,
		Questions: infraredis.NewQuestionCache(redisClient, loader, 5*time.Minute),
		StudySets: loader,
		Passwords: auth.NewPasswordGate(bcrypt.MinCost),
		Names:     bot.NewNameGenerator(rand.New(rand.NewSource(7))),
		Bots:      bot.NewSimulator(1, rand.New(rand.NewSource(7))),
	})

	n, err := loader.CountEligibleQuestions(ctx, 1)
	if err != nil {
		t.Fatalf("count eligible: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected the flashcard to be excluded, got %d eligible", n)
	}

	state, err := service.CreateRoom(ctx, "host", app.CreateRoomInput{
		StudySetID:       1,
		Name:             "Quiz Night",
		Visibility:       domain.VisibilityPrivate,
		Password:         "secret123",
		TimeLimitSeconds: 15,
		QuestionCount:    5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	roomID := state.Room.PublicID

	if _, err := service.SetSlotType(ctx, "host", roomID, 1, domain.SlotTypeEmpty); err != nil {
		t.Fatalf("open seat: %v", err)
	}
	if _, err := service.SetSlotType(ctx, "host", roomID, 2, domain.SlotTypeBot); err != nil {
		t.Fatalf("add bot: %v", err)
	}
	if _, err := service.JoinRoom(ctx, "guest", roomID, "wrong"); !errors.Is(err, domain.ErrIncorrectPassword) {
		t.Fatalf("expected incorrect password, got %v", err)
	}
	if _, err := service.JoinRoom(ctx, "guest", roomID, "secret123"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// The partial unique index on user_id rejects a second seat outright.
	seats, err := store.Slots.FindByRoom(ctx, state.Room.ID)
	if err != nil || len(seats) != domain.SlotCount {
		t.Fatalf("find seats: %+v %v", seats, err)
	}
	second := seats[3]
	second.AsPlayer("guest")
	if err := store.Slots.Update(ctx, second); !errors.Is(err, domain.ErrSeatTaken) {
		t.Fatalf("expected seat taken, got %v", err)
	}

	// A seated guest cannot open a room of their own.
	if _, err := service.CreateRoom(ctx, "guest", app.CreateRoomInput{
		StudySetID: 1, Name: "Other", Visibility: domain.VisibilityPublic, TimeLimitSeconds: 10, QuestionCount: 5,
	}); !errors.Is(err, domain.ErrAlreadyInRoom) {
		t.Fatalf("expected already in room, got %v", err)
	}

	room, err := service.StartGame(ctx, "host", roomID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(room.QuestionIDs) != 5 {
		t.Fatalf("expected 5 drawn questions, got %v", room.QuestionIDs)
	}

	view, err := service.NextQuestion(ctx, "host", roomID)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	question, err := loader.LoadQuestions(ctx, []int64{view.QuestionID})
	if err != nil || len(question) != 1 {
		t.Fatalf("load question: %v", err)
	}
	correct, _ := question[0].CorrectOption()

	res, err := service.SubmitAnswer(ctx, "guest", roomID, correct.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.IsCorrect || res.Score < 100 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := service.SubmitAnswer(ctx, "guest", roomID, correct.ID); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected unique constraint to reject resubmission, got %v", err)
	}
	bots, err := service.SimulateBotAnswers(ctx, "host", roomID)
	if err != nil || len(bots) != 1 {
		t.Fatalf("bots: %+v %v", bots, err)
	}

	results, err := service.QuestionResults(ctx, "host", roomID)
	if err != nil {
		t.Fatalf("question results: %v", err)
	}
	if results.CorrectOptionID != correct.ID || results.AnsweredCount != 2 {
		t.Fatalf("unexpected question results %+v", results)
	}

	finished, err := service.FinishGame(ctx, "host", roomID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(finished.Standings) != 2 {
		t.Fatalf("expected guest and bot ranked, got %+v", finished.Standings)
	}
	if _, err := service.Room(ctx, roomID); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room deleted, got %v", err)
	}
	var leftover int
	if err := db.NewSelect().Table("battle_answers").ColumnExpr("count(*)").Scan(ctx, &leftover); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if leftover != 0 {
		t.Fatalf("expected answers cascaded away, got %d", leftover)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "battles"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/battles?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// migrateAndSeed applies the schema, then seeds study set 1 (owned by host)
// with six multiple-choice questions and one flashcard.
func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	exec := func(query string, args ...any) {
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			t.Fatalf("seed %q: %v", query, err)
		}
	}
	exec(`INSERT INTO study_sets (id, owner_id, title) VALUES (1, 'host', 'Arithmetic')`)
	for q := 1; q <= 6; q++ {
		exec(`INSERT INTO questions (id, study_set_id, text) VALUES (?, 1, ?)`, q, fmt.Sprintf("%d + %d?", q, q))
		for o := 0; o < 3; o++ {
			exec(`INSERT INTO question_options (question_id, position, text, is_correct) VALUES (?, ?, ?, ?)`,
				q, o, fmt.Sprint(2*q+o-1), o == 1)
		}
	}
	exec(`INSERT INTO questions (id, study_set_id, type, text) VALUES (7, 1, 'flashcard', 'Recall')`)
	exec(`INSERT INTO question_options (question_id, text, is_correct) VALUES (7, 'anything', TRUE)`)
	return db
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
