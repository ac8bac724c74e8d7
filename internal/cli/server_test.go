package cli

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/auth"
	"quiz-battle-service/internal/bot"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	infraredis "quiz-battle-service/internal/infra/redis"
)

// Each iteration starts from a fresh memory store, as a restarted process
// would, so both rooms get internal id 1 and share one Redis hash key.
func TestLedgerRoomsStartWithCleanAnswers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ledger := infraredis.NewAnswerLedger(client, 6*time.Hour)
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		store := memory.NewStore()
		bank := memory.NewStaticQuestionBank(sampleStudySets())
		service := app.NewBattleService(app.Dependencies{
			Rooms:     ledgerRooms{RoomRepository: store.Rooms, ledger: ledger},
			Slots:     store.Slots,
			Answers:   ledger,
			Questions: memory.NewQuestionCache(bank, time.Minute),
			StudySets: bank,
			Passwords: auth.NewPasswordGate(bcrypt.MinCost),
			Names:     bot.NewNameGenerator(nil),
			Bots:      bot.NewSimulator(bot.DefaultAccuracy, nil),
		})

		state, err := service.CreateRoom(ctx, "demo-host", app.CreateRoomInput{
			StudySetID:       1,
			Name:             "Capitals",
			Visibility:       domain.VisibilityPublic,
			TimeLimitSeconds: 15,
			QuestionCount:    5,
		})
		if err != nil {
			t.Fatalf("run %d create: %v", run, err)
		}
		if state.Room.ID != 1 {
			t.Fatalf("run %d expected internal room id 1, got %d", run, state.Room.ID)
		}
		roomID := state.Room.PublicID
		if _, err := service.StartGame(ctx, "demo-host", roomID); err != nil {
			t.Fatalf("run %d start: %v", run, err)
		}
		view, err := service.NextQuestion(ctx, "demo-host", roomID)
		if err != nil {
			t.Fatalf("run %d next: %v", run, err)
		}

		correct := view.QuestionID*10 + (view.QuestionID-1)%4 + 1
		res, err := service.SubmitAnswer(ctx, "demo-host", roomID, correct)
		if err != nil {
			t.Fatalf("run %d first submit: %v", run, err)
		}
		if !res.IsCorrect {
			t.Fatalf("run %d expected correct answer, got %+v", run, res)
		}

		results, err := service.QuestionResults(ctx, "demo-host", roomID)
		if err != nil {
			t.Fatalf("run %d question results: %v", run, err)
		}
		if results.AnsweredCount != 1 {
			t.Fatalf("run %d expected only this run's answer, got %d", run, results.AnsweredCount)
		}
	}
}

func TestLedgerRoomsDeleteDropsAnswers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ledger := infraredis.NewAnswerLedger(client, 0)
	rooms := ledgerRooms{RoomRepository: memory.NewStore().Rooms, ledger: ledger}
	ctx := context.Background()

	room := domain.Room{PublicID: "r1", HostID: "host", Status: domain.RoomStatusWaiting}
	if err := rooms.Create(ctx, &room); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ledger.Create(ctx, &domain.Answer{RoomID: room.ID, SlotID: 1}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := rooms.Delete(ctx, room.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("battle:room:1:answers") {
		t.Fatalf("expected room answers dropped with the room")
	}
}
