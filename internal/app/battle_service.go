package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"quiz-battle-service/internal/domain"
)

// Dependencies groups the collaborators of BattleService. Events may be nil.
type Dependencies struct {
	Rooms     RoomRepository
	Slots     SlotRepository
	Answers   AnswerRepository
	Questions QuestionRepository
	StudySets StudySetRepository
	Passwords PasswordHasher
	Names     NameGenerator
	Bots      BotSimulator
	Events    EventPublisher
}

// BattleService contains the multiplayer quiz battle use cases.
type BattleService struct {
	rooms     RoomRepository
	slots     SlotRepository
	answers   AnswerRepository
	questions QuestionRepository
	studySets StudySetRepository
	passwords PasswordHasher
	names     NameGenerator
	bots      BotSimulator
	events    EventPublisher

	now    func() time.Time
	rnd    *rand.Rand
	newID  func() string
	logger *slog.Logger
}

type Option func(*BattleService)

// WithClock replaces time.Now, mostly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *BattleService) { s.now = now }
}

// WithRand seeds the question draw.
func WithRand(rnd *rand.Rand) Option {
	return func(s *BattleService) { s.rnd = rnd }
}

// WithPublicIDs replaces the room public id generator.
func WithPublicIDs(gen func() string) Option {
	return func(s *BattleService) { s.newID = gen }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *BattleService) { s.logger = logger }
}

func NewBattleService(deps Dependencies, opts ...Option) *BattleService {
	s := &BattleService{
		rooms:     deps.Rooms,
		slots:     deps.Slots,
		answers:   deps.Answers,
		questions: deps.Questions,
		studySets: deps.StudySets,
		passwords: deps.Passwords,
		names:     deps.Names,
		bots:      deps.Bots,
		events:    deps.Events,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:     newPublicID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RoomState is a room together with its seats.
type RoomState struct {
	Room  domain.Room   `json:"room"`
	Slots []domain.Slot `json:"slots"`
}

func (s *BattleService) loadRoom(ctx context.Context, publicID string) (domain.Room, error) {
	room, err := s.rooms.FindByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, fmt.Errorf("find room: %w", err)
	}
	return room, nil
}

func (s *BattleService) loadState(ctx context.Context, publicID string) (RoomState, error) {
	room, err := s.loadRoom(ctx, publicID)
	if err != nil {
		return RoomState{}, err
	}
	slots, err := s.slots.FindByRoom(ctx, room.ID)
	if err != nil {
		return RoomState{}, fmt.Errorf("find slots: %w", err)
	}
	return RoomState{Room: room, Slots: slots}, nil
}

// seatOf returns the slot userID holds in this room.
func seatOf(slots []domain.Slot, userID string) (domain.Slot, bool) {
	for _, slot := range slots {
		if slot.HeldBy(userID) {
			return slot, true
		}
	}
	return domain.Slot{}, false
}

func slotAt(slots []domain.Slot, index int) (domain.Slot, bool) {
	for _, slot := range slots {
		if slot.Index == index {
			return slot, true
		}
	}
	return domain.Slot{}, false
}

func requireHost(room domain.Room, userID string) error {
	if room.HostID != userID {
		return domain.ErrNotHost
	}
	return nil
}

func requireStatus(room domain.Room, status domain.RoomStatus) error {
	if room.Status == status {
		return nil
	}
	switch status {
	case domain.RoomStatusWaiting:
		return domain.ErrRoomNotWaiting
	case domain.RoomStatusInGame:
		return domain.ErrRoomNotInGame
	default:
		return domain.ErrGameNotFinished
	}
}

// publish is best effort; a lost notification must not fail a state transition.
func (s *BattleService) publish(ctx context.Context, typ domain.EventType, roomID string, payload any) {
	if s.events == nil {
		return
	}
	event := domain.Event{Type: typ, RoomID: roomID, Payload: payload, OccurredAt: s.now()}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish room event", "type", typ, "room", roomID, "err", err)
	}
}

func (s *BattleService) publishState(ctx context.Context, state RoomState) {
	s.publish(ctx, domain.EventRoomUpdated, state.Room.PublicID, state)
}
