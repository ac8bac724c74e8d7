package memory

import (
	"context"
	"slices"
	"sync"

	"quiz-battle-service/internal/domain"
)

// Store is an in-memory relational store for rooms, slots and answers. It
// enforces the same keys as the Postgres schema: one answer per
// (room, slot, question index), one seat per user, cascade on room delete.
type Store struct {
	Rooms   *RoomStore
	Slots   *SlotStore
	Answers *AnswerStore
}

type tables struct {
	mu sync.RWMutex

	nextRoomID   int64
	nextSlotID   int64
	nextAnswerID int64

	rooms      map[int64]domain.Room
	slots      map[int64]domain.Slot
	answers    map[int64]domain.Answer
	answerKeys map[answerKey]int64
}

type answerKey struct {
	roomID        int64
	slotID        int64
	questionIndex int
}

func NewStore() *Store {
	t := &tables{
		rooms:      make(map[int64]domain.Room),
		slots:      make(map[int64]domain.Slot),
		answers:    make(map[int64]domain.Answer),
		answerKeys: make(map[answerKey]int64),
	}
	return &Store{
		Rooms:   &RoomStore{t: t},
		Slots:   &SlotStore{t: t},
		Answers: &AnswerStore{t: t},
	}
}

// RoomStore implements app.RoomRepository.
type RoomStore struct{ t *tables }

func (s *RoomStore) Create(_ context.Context, room *domain.Room) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.nextRoomID++
	room.ID = s.t.nextRoomID
	s.t.rooms[room.ID] = cloneRoom(*room)
	return nil
}

func (s *RoomStore) FindByID(_ context.Context, id int64) (domain.Room, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	room, ok := s.t.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (s *RoomStore) FindByPublicID(_ context.Context, publicID string) (domain.Room, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for _, room := range s.t.rooms {
		if room.PublicID == publicID {
			return cloneRoom(room), nil
		}
	}
	return domain.Room{}, domain.ErrRoomNotFound
}

func (s *RoomStore) FindByStatus(_ context.Context, status domain.RoomStatus) ([]domain.Room, error) {
	return s.filter(func(r domain.Room) bool { return r.Status == status }), nil
}

func (s *RoomStore) FindByHost(_ context.Context, hostID string) ([]domain.Room, error) {
	return s.filter(func(r domain.Room) bool { return r.HostID == hostID }), nil
}

func (s *RoomStore) filter(match func(domain.Room) bool) []domain.Room {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	out := make([]domain.Room, 0)
	for _, room := range s.t.rooms {
		if match(room) {
			out = append(out, cloneRoom(room))
		}
	}
	slices.SortFunc(out, func(a, b domain.Room) int { return int(a.ID - b.ID) })
	return out
}

func (s *RoomStore) Update(_ context.Context, room domain.Room) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if _, ok := s.t.rooms[room.ID]; !ok {
		return domain.ErrRoomNotFound
	}
	s.t.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *RoomStore) Delete(_ context.Context, id int64) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if _, ok := s.t.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(s.t.rooms, id)
	s.t.deleteSlotsLocked(id)
	for key, answerID := range s.t.answerKeys {
		if key.roomID == id {
			delete(s.t.answerKeys, key)
			delete(s.t.answers, answerID)
		}
	}
	return nil
}

// SlotStore implements app.SlotRepository.
type SlotStore struct{ t *tables }

func (s *SlotStore) CreateBatch(_ context.Context, slots []domain.Slot) ([]domain.Slot, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	for _, slot := range slots {
		if slot.UserID != nil && s.t.seatedLocked(*slot.UserID, 0) {
			return nil, domain.ErrSeatTaken
		}
	}
	out := make([]domain.Slot, len(slots))
	for i, slot := range slots {
		s.t.nextSlotID++
		slot.ID = s.t.nextSlotID
		s.t.slots[slot.ID] = cloneSlot(slot)
		out[i] = cloneSlot(slot)
	}
	return out, nil
}

func (s *SlotStore) FindByRoom(_ context.Context, roomID int64) ([]domain.Slot, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	out := make([]domain.Slot, 0, domain.SlotCount)
	for _, slot := range s.t.slots {
		if slot.RoomID == roomID {
			out = append(out, cloneSlot(slot))
		}
	}
	slices.SortFunc(out, func(a, b domain.Slot) int { return a.Index - b.Index })
	return out, nil
}

func (s *SlotStore) FindByUser(_ context.Context, userID string) (domain.Slot, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for _, slot := range s.t.slots {
		if slot.UserID != nil && *slot.UserID == userID {
			return cloneSlot(slot), nil
		}
	}
	return domain.Slot{}, domain.ErrSlotNotFound
}

func (s *SlotStore) Update(_ context.Context, slot domain.Slot) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if _, ok := s.t.slots[slot.ID]; !ok {
		return domain.ErrSlotNotFound
	}
	if slot.UserID != nil && s.t.seatedLocked(*slot.UserID, slot.ID) {
		return domain.ErrSeatTaken
	}
	s.t.slots[slot.ID] = cloneSlot(slot)
	return nil
}

func (s *SlotStore) DeleteByRoom(_ context.Context, roomID int64) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.deleteSlotsLocked(roomID)
	return nil
}

func (t *tables) deleteSlotsLocked(roomID int64) {
	for id, slot := range t.slots {
		if slot.RoomID == roomID {
			delete(t.slots, id)
		}
	}
}

// seatedLocked reports whether userID holds any slot other than exceptID.
func (t *tables) seatedLocked(userID string, exceptID int64) bool {
	for id, slot := range t.slots {
		if id != exceptID && slot.UserID != nil && *slot.UserID == userID {
			return true
		}
	}
	return false
}

// AnswerStore implements app.AnswerRepository.
type AnswerStore struct{ t *tables }

func (s *AnswerStore) Create(_ context.Context, answer *domain.Answer) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	key := answerKey{roomID: answer.RoomID, slotID: answer.SlotID, questionIndex: answer.QuestionIndex}
	if _, exists := s.t.answerKeys[key]; exists {
		return domain.ErrDuplicateAnswer
	}
	s.t.nextAnswerID++
	answer.ID = s.t.nextAnswerID
	s.t.answers[answer.ID] = *answer
	s.t.answerKeys[key] = answer.ID
	return nil
}

func (s *AnswerStore) FindByRoom(_ context.Context, roomID int64) ([]domain.Answer, error) {
	return s.filter(func(a domain.Answer) bool { return a.RoomID == roomID }), nil
}

func (s *AnswerStore) FindByRoomAndQuestionIndex(_ context.Context, roomID int64, questionIndex int) ([]domain.Answer, error) {
	return s.filter(func(a domain.Answer) bool {
		return a.RoomID == roomID && a.QuestionIndex == questionIndex
	}), nil
}

func (s *AnswerStore) CountByRoomAndQuestionIndex(ctx context.Context, roomID int64, questionIndex int) (int, error) {
	answers, err := s.FindByRoomAndQuestionIndex(ctx, roomID, questionIndex)
	return len(answers), err
}

func (s *AnswerStore) filter(match func(domain.Answer) bool) []domain.Answer {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for _, a := range s.t.answers {
		if match(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Answer) int { return int(a.ID - b.ID) })
	return out
}

func cloneRoom(r domain.Room) domain.Room {
	if r.CurrentQuestionIndex != nil {
		idx := *r.CurrentQuestionIndex
		r.CurrentQuestionIndex = &idx
	}
	if r.CurrentQuestionStartedAt != nil {
		at := *r.CurrentQuestionStartedAt
		r.CurrentQuestionStartedAt = &at
	}
	r.QuestionIDs = slices.Clone(r.QuestionIDs)
	return r
}

func cloneSlot(s domain.Slot) domain.Slot {
	if s.UserID != nil {
		id := *s.UserID
		s.UserID = &id
	}
	if s.BotName != nil {
		name := *s.BotName
		s.BotName = &name
	}
	return s
}
