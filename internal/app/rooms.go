package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"quiz-battle-service/internal/domain"
)

// CreateRoomInput carries the host's room configuration.
type CreateRoomInput struct {
	StudySetID       int64             `json:"studySetId"`
	Name             string            `json:"name"`
	Visibility       domain.Visibility `json:"visibility"`
	Password         string            `json:"password,omitempty"`
	TimeLimitSeconds int               `json:"timeLimitSeconds"`
	QuestionCount    int               `json:"questionCount"`
}

func (in CreateRoomInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.ErrInvalidName
	}
	if !slices.Contains(domain.AllowedTimeLimits, in.TimeLimitSeconds) {
		return domain.ErrInvalidTimeLimit
	}
	if !slices.Contains(domain.AllowedQuestionCounts, in.QuestionCount) {
		return domain.ErrInvalidQuestionCount
	}
	switch in.Visibility {
	case domain.VisibilityPublic:
	case domain.VisibilityPrivate:
		if in.Password == "" {
			return domain.ErrPasswordRequired
		}
	default:
		return domain.ErrInvalidVisibility
	}
	return nil
}

// LobbyRoom is a waiting room with its seat summary.
type LobbyRoom struct {
	Room    domain.Room `json:"room"`
	Players int         `json:"players"`
	Bots    int         `json:"bots"`
	Empty   int         `json:"empty"`
}

func newPublicID() string {
	return uuid.NewString()
}

// CreateRoom opens a new waiting room hosted by hostID.
func (s *BattleService) CreateRoom(ctx context.Context, hostID string, in CreateRoomInput) (RoomState, error) {
	if err := in.validate(); err != nil {
		return RoomState{}, err
	}
	if err := s.ensureNoActiveSeat(ctx, hostID); err != nil {
		return RoomState{}, err
	}

	set, err := s.studySets.FindStudySet(ctx, in.StudySetID)
	if err != nil {
		return RoomState{}, err
	}
	if set.OwnerID != hostID {
		return RoomState{}, domain.ErrNotStudySetOwner
	}
	available, err := s.studySets.CountEligibleQuestions(ctx, in.StudySetID)
	if err != nil {
		return RoomState{}, fmt.Errorf("count questions: %w", err)
	}
	if available < in.QuestionCount {
		return RoomState{}, domain.ErrNotEnoughQuestions
	}

	room := domain.Room{
		PublicID:         s.newID(),
		HostID:           hostID,
		Name:             strings.TrimSpace(in.Name),
		Visibility:       in.Visibility,
		TimeLimitSeconds: in.TimeLimitSeconds,
		QuestionCount:    in.QuestionCount,
		StudySetID:       in.StudySetID,
		Status:           domain.RoomStatusWaiting,
		CreatedAt:        s.now(),
	}
	if in.Visibility == domain.VisibilityPrivate {
		digest, err := s.passwords.Hash(in.Password)
		if err != nil {
			return RoomState{}, fmt.Errorf("hash password: %w", err)
		}
		room.PasswordHash = digest
	}
	if err := s.rooms.Create(ctx, &room); err != nil {
		return RoomState{}, fmt.Errorf("create room: %w", err)
	}

	seats := make([]domain.Slot, domain.SlotCount)
	for i := range seats {
		seats[i] = domain.Slot{RoomID: room.ID, Index: i}
		if i == domain.HostSlotIndex {
			seats[i].AsPlayer(hostID)
		} else {
			seats[i].Clear(domain.SlotTypeLocked)
		}
	}
	slots, err := s.slots.CreateBatch(ctx, seats)
	if err != nil {
		// Roll back so the host is not left with a seatless room.
		_ = s.rooms.Delete(ctx, room.ID)
		if errors.Is(err, domain.ErrSeatTaken) {
			return RoomState{}, domain.ErrAlreadyInRoom
		}
		return RoomState{}, fmt.Errorf("create slots: %w", err)
	}

	s.logger.Info("battle room created", "room", room.PublicID, "host", hostID)
	state := RoomState{Room: room, Slots: slots}
	s.publishState(ctx, state)
	return state, nil
}

// ensureNoActiveSeat fails with ErrAlreadyInRoom when userID is seated in a
// waiting or running room, and purges seats left over from dead rooms.
func (s *BattleService) ensureNoActiveSeat(ctx context.Context, userID string) error {
	seat, err := s.slots.FindByUser(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrSlotNotFound):
	case err != nil:
		return fmt.Errorf("find seat: %w", err)
	default:
		room, err := s.rooms.FindByID(ctx, seat.RoomID)
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			s.logger.Info("purging orphan seat", "user", userID, "roomId", seat.RoomID)
			if err := s.slots.DeleteByRoom(ctx, seat.RoomID); err != nil {
				return fmt.Errorf("purge orphan seat: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find room: %w", err)
		case room.Status.Active():
			return domain.ErrAlreadyInRoom
		default:
			s.logger.Info("purging finished room", "user", userID, "room", room.PublicID)
			if err := s.rooms.Delete(ctx, room.ID); err != nil {
				return fmt.Errorf("purge finished room: %w", err)
			}
		}
	}

	hosted, err := s.rooms.FindByHost(ctx, userID)
	if err != nil {
		return fmt.Errorf("find hosted rooms: %w", err)
	}
	for _, room := range hosted {
		if room.Status != domain.RoomStatusFinished {
			continue
		}
		if err := s.rooms.Delete(ctx, room.ID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			return fmt.Errorf("purge finished room: %w", err)
		}
	}
	return nil
}

// JoinRoom seats userID in the first empty slot of a waiting room.
func (s *BattleService) JoinRoom(ctx context.Context, userID, roomPublicID, password string) (RoomState, error) {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return RoomState{}, err
	}
	room := state.Room
	if err := requireStatus(room, domain.RoomStatusWaiting); err != nil {
		return RoomState{}, err
	}
	if err := s.ensureNoActiveSeat(ctx, userID); err != nil {
		return RoomState{}, err
	}
	if room.Visibility == domain.VisibilityPrivate {
		if password == "" || !s.passwords.Verify(password, room.PasswordHash) {
			return RoomState{}, domain.ErrIncorrectPassword
		}
	}

	slots := sortedSlots(state.Slots)
	target := -1
	for i, slot := range slots {
		if slot.Type == domain.SlotTypeEmpty {
			target = i
			break
		}
	}
	if target < 0 {
		return RoomState{}, domain.ErrRoomFull
	}

	slots[target].AsPlayer(userID)
	if err := s.slots.Update(ctx, slots[target]); err != nil {
		if errors.Is(err, domain.ErrSeatTaken) {
			return RoomState{}, domain.ErrAlreadyInRoom
		}
		return RoomState{}, fmt.Errorf("update slot: %w", err)
	}

	state.Slots = slots
	s.publishState(ctx, state)
	return state, nil
}

// LeaveRoom vacates userID's seat. A leaving host closes the room for everyone.
func (s *BattleService) LeaveRoom(ctx context.Context, userID, roomPublicID string) error {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return err
	}
	room := state.Room

	if room.HostID == userID {
		if err := s.rooms.Delete(ctx, room.ID); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		s.logger.Info("battle room closed by host", "room", room.PublicID)
		s.publish(ctx, domain.EventRoomClosed, room.PublicID, nil)
		return nil
	}

	seat, ok := seatOf(state.Slots, userID)
	if !ok {
		return domain.ErrNotParticipant
	}
	seat.Clear(domain.SlotTypeEmpty)
	if err := s.slots.Update(ctx, seat); err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	state.Slots = replaceSlot(state.Slots, seat)
	s.publishState(ctx, state)
	return nil
}

// Kick removes a player from a seat of a waiting room.
func (s *BattleService) Kick(ctx context.Context, hostID, roomPublicID string, slotIndex int) (RoomState, error) {
	state, err := s.loadHostedWaiting(ctx, hostID, roomPublicID)
	if err != nil {
		return RoomState{}, err
	}
	if slotIndex < 0 || slotIndex >= domain.SlotCount {
		return RoomState{}, domain.ErrInvalidSlot
	}
	if slotIndex == domain.HostSlotIndex {
		return RoomState{}, domain.ErrCannotKickSelf
	}
	slot, ok := slotAt(state.Slots, slotIndex)
	if !ok {
		return RoomState{}, domain.ErrSlotNotFound
	}
	if slot.Type != domain.SlotTypePlayer {
		return RoomState{}, domain.ErrSlotNotPlayer
	}

	slot.Clear(domain.SlotTypeEmpty)
	if err := s.slots.Update(ctx, slot); err != nil {
		return RoomState{}, fmt.Errorf("update slot: %w", err)
	}
	state.Slots = replaceSlot(state.Slots, slot)
	s.publishState(ctx, state)
	return state, nil
}

// SetSlotType opens, locks or fills a non-player seat with a bot.
func (s *BattleService) SetSlotType(ctx context.Context, hostID, roomPublicID string, slotIndex int, slotType domain.SlotType) (RoomState, error) {
	switch slotType {
	case domain.SlotTypeEmpty, domain.SlotTypeBot, domain.SlotTypeLocked:
	default:
		return RoomState{}, domain.ErrInvalidSlotType
	}
	state, err := s.loadHostedWaiting(ctx, hostID, roomPublicID)
	if err != nil {
		return RoomState{}, err
	}
	if slotIndex < 0 || slotIndex >= domain.SlotCount {
		return RoomState{}, domain.ErrInvalidSlot
	}
	if slotIndex == domain.HostSlotIndex {
		return RoomState{}, domain.ErrCannotModifyHost
	}
	slot, ok := slotAt(state.Slots, slotIndex)
	if !ok {
		return RoomState{}, domain.ErrSlotNotFound
	}
	if slot.Type == domain.SlotTypePlayer {
		return RoomState{}, domain.ErrSlotOccupied
	}

	if slotType == domain.SlotTypeBot {
		slot.AsBot(s.names.Generate())
	} else {
		slot.Clear(slotType)
	}
	if err := s.slots.Update(ctx, slot); err != nil {
		return RoomState{}, fmt.Errorf("update slot: %w", err)
	}
	state.Slots = replaceSlot(state.Slots, slot)
	s.publishState(ctx, state)
	return state, nil
}

// ListRooms returns every waiting room with its seat counts.
func (s *BattleService) ListRooms(ctx context.Context) ([]LobbyRoom, error) {
	rooms, err := s.rooms.FindByStatus(ctx, domain.RoomStatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	lobby := make([]LobbyRoom, 0, len(rooms))
	for _, room := range rooms {
		slots, err := s.slots.FindByRoom(ctx, room.ID)
		if err != nil {
			return nil, fmt.Errorf("find slots: %w", err)
		}
		entry := LobbyRoom{Room: room}
		for _, slot := range slots {
			switch slot.Type {
			case domain.SlotTypePlayer:
				entry.Players++
			case domain.SlotTypeBot:
				entry.Bots++
			case domain.SlotTypeEmpty:
				entry.Empty++
			}
		}
		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// Room returns the current snapshot of a room and its seats.
func (s *BattleService) Room(ctx context.Context, roomPublicID string) (RoomState, error) {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return RoomState{}, err
	}
	state.Slots = sortedSlots(state.Slots)
	return state, nil
}

func (s *BattleService) loadHostedWaiting(ctx context.Context, hostID, roomPublicID string) (RoomState, error) {
	state, err := s.loadState(ctx, roomPublicID)
	if err != nil {
		return RoomState{}, err
	}
	if err := requireHost(state.Room, hostID); err != nil {
		return RoomState{}, err
	}
	if err := requireStatus(state.Room, domain.RoomStatusWaiting); err != nil {
		return RoomState{}, err
	}
	return state, nil
}

func sortedSlots(slots []domain.Slot) []domain.Slot {
	out := slices.Clone(slots)
	slices.SortFunc(out, func(a, b domain.Slot) int { return a.Index - b.Index })
	return out
}

func replaceSlot(slots []domain.Slot, updated domain.Slot) []domain.Slot {
	out := sortedSlots(slots)
	for i := range out {
		if out[i].Index == updated.Index {
			out[i] = updated
		}
	}
	return out
}
