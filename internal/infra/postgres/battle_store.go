package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"quiz-battle-service/internal/domain"
)

const (
	uniqueViolation = "23505"
	seatConstraint  = "battle_slots_user_idx"
)

// Store persists rooms, slots and answers with bun. Foreign keys cascade room
// deletion to slots and answers.
type Store struct {
	Rooms   *RoomStore
	Slots   *SlotStore
	Answers *AnswerStore
}

func NewStore(db *bun.DB) *Store {
	return &Store{
		Rooms:   &RoomStore{db: db},
		Slots:   &SlotStore{db: db},
		Answers: &AnswerStore{db: db},
	}
}

type roomModel struct {
	bun.BaseModel `bun:"table:battle_rooms,alias:r"`

	ID                       int64      `bun:"id,pk,autoincrement"`
	PublicID                 string     `bun:"public_id,notnull"`
	HostID                   string     `bun:"host_id,notnull"`
	Name                     string     `bun:"name,notnull"`
	Visibility               string     `bun:"visibility,notnull"`
	PasswordHash             string     `bun:"password_hash,notnull"`
	TimeLimitSeconds         int        `bun:"time_limit_seconds,notnull"`
	QuestionCount            int        `bun:"question_count,notnull"`
	StudySetID               int64      `bun:"study_set_id,notnull"`
	Status                   string     `bun:"status,notnull"`
	CurrentQuestionIndex     *int       `bun:"current_question_index"`
	CurrentQuestionStartedAt *time.Time `bun:"current_question_started_at"`
	QuestionIDs              []int64    `bun:"question_ids,array,notnull"`
	CreatedAt                time.Time  `bun:"created_at,notnull"`
}

func toRoomModel(r domain.Room) *roomModel {
	ids := r.QuestionIDs
	if ids == nil {
		ids = []int64{}
	}
	return &roomModel{
		ID:                       r.ID,
		PublicID:                 r.PublicID,
		HostID:                   r.HostID,
		Name:                     r.Name,
		Visibility:               string(r.Visibility),
		PasswordHash:             r.PasswordHash,
		TimeLimitSeconds:         r.TimeLimitSeconds,
		QuestionCount:            r.QuestionCount,
		StudySetID:               r.StudySetID,
		Status:                   string(r.Status),
		CurrentQuestionIndex:     r.CurrentQuestionIndex,
		CurrentQuestionStartedAt: r.CurrentQuestionStartedAt,
		QuestionIDs:              ids,
		CreatedAt:                r.CreatedAt,
	}
}

func (m roomModel) toDomain() domain.Room {
	return domain.Room{
		ID:                       m.ID,
		PublicID:                 m.PublicID,
		HostID:                   m.HostID,
		Name:                     m.Name,
		Visibility:               domain.Visibility(m.Visibility),
		PasswordHash:             m.PasswordHash,
		TimeLimitSeconds:         m.TimeLimitSeconds,
		QuestionCount:            m.QuestionCount,
		StudySetID:               m.StudySetID,
		Status:                   domain.RoomStatus(m.Status),
		CurrentQuestionIndex:     m.CurrentQuestionIndex,
		CurrentQuestionStartedAt: m.CurrentQuestionStartedAt,
		QuestionIDs:              m.QuestionIDs,
		CreatedAt:                m.CreatedAt,
	}
}

type slotModel struct {
	bun.BaseModel `bun:"table:battle_slots,alias:s"`

	ID      int64   `bun:"id,pk,autoincrement"`
	RoomID  int64   `bun:"room_id,notnull"`
	Index   int     `bun:"slot_index,notnull"`
	Type    string  `bun:"type,notnull"`
	UserID  *string `bun:"user_id"`
	BotName *string `bun:"bot_name"`
}

func toSlotModel(s domain.Slot) slotModel {
	return slotModel{
		ID:      s.ID,
		RoomID:  s.RoomID,
		Index:   s.Index,
		Type:    string(s.Type),
		UserID:  s.UserID,
		BotName: s.BotName,
	}
}

func (m slotModel) toDomain() domain.Slot {
	return domain.Slot{
		ID:      m.ID,
		RoomID:  m.RoomID,
		Index:   m.Index,
		Type:    domain.SlotType(m.Type),
		UserID:  m.UserID,
		BotName: m.BotName,
	}
}

type answerModel struct {
	bun.BaseModel `bun:"table:battle_answers,alias:a"`

	ID               int64     `bun:"id,pk,autoincrement"`
	RoomID           int64     `bun:"room_id,notnull"`
	SlotID           int64     `bun:"slot_id,notnull"`
	QuestionID       int64     `bun:"question_id,notnull"`
	QuestionIndex    int       `bun:"question_index,notnull"`
	SelectedOptionID int64     `bun:"selected_option_id,notnull"`
	IsCorrect        bool      `bun:"is_correct,notnull"`
	AnsweredAt       time.Time `bun:"answered_at,notnull"`
	Score            int       `bun:"score,notnull"`
}

func (m answerModel) toDomain() domain.Answer {
	return domain.Answer{
		ID:               m.ID,
		RoomID:           m.RoomID,
		SlotID:           m.SlotID,
		QuestionID:       m.QuestionID,
		QuestionIndex:    m.QuestionIndex,
		SelectedOptionID: m.SelectedOptionID,
		IsCorrect:        m.IsCorrect,
		AnsweredAt:       m.AnsweredAt,
		Score:            m.Score,
	}
}

// RoomStore implements app.RoomRepository.
type RoomStore struct {
	db *bun.DB
}

func (s *RoomStore) Create(ctx context.Context, room *domain.Room) error {
	m := toRoomModel(*room)
	if _, err := s.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	room.ID = m.ID
	return nil
}

func (s *RoomStore) FindByID(ctx context.Context, id int64) (domain.Room, error) {
	return s.findOne(ctx, "r.id = ?", id)
}

func (s *RoomStore) FindByPublicID(ctx context.Context, publicID string) (domain.Room, error) {
	return s.findOne(ctx, "r.public_id = ?", publicID)
}

func (s *RoomStore) findOne(ctx context.Context, where string, arg any) (domain.Room, error) {
	var m roomModel
	err := s.db.NewSelect().Model(&m).Where(where, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("select room: %w", err)
	}
	return m.toDomain(), nil
}

func (s *RoomStore) FindByStatus(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error) {
	return s.findMany(ctx, "r.status = ?", string(status))
}

func (s *RoomStore) FindByHost(ctx context.Context, hostID string) ([]domain.Room, error) {
	return s.findMany(ctx, "r.host_id = ?", hostID)
}

func (s *RoomStore) findMany(ctx context.Context, where string, arg any) ([]domain.Room, error) {
	var models []roomModel
	if err := s.db.NewSelect().Model(&models).Where(where, arg).Order("r.created_at ASC", "r.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	out := make([]domain.Room, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (s *RoomStore) Update(ctx context.Context, room domain.Room) error {
	res, err := s.db.NewUpdate().Model(toRoomModel(room)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *RoomStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*roomModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// SlotStore implements app.SlotRepository. The partial unique index on
// user_id keeps a user in at most one seat.
type SlotStore struct {
	db *bun.DB
}

func (s *SlotStore) CreateBatch(ctx context.Context, slots []domain.Slot) ([]domain.Slot, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	models := make([]slotModel, len(slots))
	for i, slot := range slots {
		models[i] = toSlotModel(slot)
	}
	if _, err := s.db.NewInsert().Model(&models).Returning("id").Exec(ctx); err != nil {
		return nil, translateSlotErr(fmt.Errorf("insert slots: %w", err))
	}
	out := make([]domain.Slot, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (s *SlotStore) FindByRoom(ctx context.Context, roomID int64) ([]domain.Slot, error) {
	var models []slotModel
	if err := s.db.NewSelect().Model(&models).Where("s.room_id = ?", roomID).Order("s.slot_index ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select slots: %w", err)
	}
	out := make([]domain.Slot, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (s *SlotStore) FindByUser(ctx context.Context, userID string) (domain.Slot, error) {
	var m slotModel
	err := s.db.NewSelect().Model(&m).Where("s.user_id = ?", userID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	if err != nil {
		return domain.Slot{}, fmt.Errorf("select slot: %w", err)
	}
	return m.toDomain(), nil
}

func (s *SlotStore) Update(ctx context.Context, slot domain.Slot) error {
	m := toSlotModel(slot)
	res, err := s.db.NewUpdate().Model(&m).WherePK().Exec(ctx)
	if err != nil {
		return translateSlotErr(fmt.Errorf("update slot: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

func (s *SlotStore) DeleteByRoom(ctx context.Context, roomID int64) error {
	if _, err := s.db.NewDelete().Model((*slotModel)(nil)).Where("room_id = ?", roomID).Exec(ctx); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}
	return nil
}

// AnswerStore implements app.AnswerRepository on top of the
// (room_id, slot_id, question_index) unique constraint.
type AnswerStore struct {
	db *bun.DB
}

func (s *AnswerStore) Create(ctx context.Context, answer *domain.Answer) error {
	m := &answerModel{
		RoomID:           answer.RoomID,
		SlotID:           answer.SlotID,
		QuestionID:       answer.QuestionID,
		QuestionIndex:    answer.QuestionIndex,
		SelectedOptionID: answer.SelectedOptionID,
		IsCorrect:        answer.IsCorrect,
		AnsweredAt:       answer.AnsweredAt,
		Score:            answer.Score,
	}
	if _, err := s.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateAnswer
		}
		return fmt.Errorf("insert answer: %w", err)
	}
	answer.ID = m.ID
	return nil
}

func (s *AnswerStore) FindByRoom(ctx context.Context, roomID int64) ([]domain.Answer, error) {
	return s.find(ctx, s.db.NewSelect().Where("a.room_id = ?", roomID))
}

func (s *AnswerStore) FindByRoomAndQuestionIndex(ctx context.Context, roomID int64, questionIndex int) ([]domain.Answer, error) {
	return s.find(ctx, s.db.NewSelect().Where("a.room_id = ?", roomID).Where("a.question_index = ?", questionIndex))
}

func (s *AnswerStore) find(ctx context.Context, q *bun.SelectQuery) ([]domain.Answer, error) {
	var models []answerModel
	if err := q.Model(&models).Order("a.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	out := make([]domain.Answer, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (s *AnswerStore) CountByRoomAndQuestionIndex(ctx context.Context, roomID int64, questionIndex int) (int, error) {
	n, err := s.db.NewSelect().
		Model((*answerModel)(nil)).
		Where("a.room_id = ?", roomID).
		Where("a.question_index = ?", questionIndex).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

func translateSlotErr(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation && pgErr.Field('n') == seatConstraint {
		return domain.ErrSeatTaken
	}
	return err
}
