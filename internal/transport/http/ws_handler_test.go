package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/auth"
	"quiz-battle-service/internal/bot"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

func newTestServer(t *testing.T, tokens TokenVerifier) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	bank := sampleBank()
	hub := app.NewRoomHub()
	service := app.NewBattleService(app.Dependencies{
		Rooms:     store.Rooms,
		Slots:     store.Slots,
		Answers:   store.Answers,
		Questions: memory.NewQuestionCache(bank, time.Minute),
		StudySets: bank,
		Passwords: auth.NewPasswordGate(bcrypt.MinCost),
		Names:     bot.NewNameGenerator(nil),
		Bots:      bot.NewSimulator(bot.DefaultAccuracy, nil),
		Events:    hub,
	})
	identity := NewIdentity(tokens)

	mux := http.NewServeMux()
	NewRoomsHandler(service, identity).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(service, hub, identity).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRoomsHTTP(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postRoom(t, server.URL+"/rooms", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.StatusCode)
	}

	roomID := createRoom(t, server.URL, "host")

	resp, err := http.Get(server.URL + "/rooms")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var lobby []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&lobby); err != nil {
		t.Fatalf("decode lobby: %v", err)
	}
	resp.Body.Close()
	if len(lobby) != 1 {
		t.Fatalf("expected one room in lobby, got %d", len(lobby))
	}

	resp, err = http.Get(server.URL + "/rooms/" + roomID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/rooms/missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp = postRoom(t, server.URL+"/rooms?userId=host", `{"studySetId":1,"name":"Again","visibility":"public","timeLimitSeconds":15,"questionCount":5}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a second room, got %d", resp.StatusCode)
	}
}

func TestWebSocketBattleFlow(t *testing.T) {
	server := newTestServer(t, nil)
	roomID := createRoom(t, server.URL, "host")

	host := dial(t, server.URL, roomID, "userId=host")
	readUntil(t, host, "state", "")
	send(t, host, "set_slot", map[string]any{"slotIndex": 1, "slotType": "empty"})
	readUntil(t, host, "reply", "set_slot")

	guest := dial(t, server.URL, roomID, "userId=guest")
	readUntil(t, guest, "state", "")
	send(t, guest, "join", nil)
	readUntil(t, guest, "reply", "join")

	send(t, host, "start", nil)
	readUntil(t, host, "reply", "start")
	send(t, host, "next", nil)
	readUntil(t, host, "reply", "next")

	started := readUntil(t, guest, string(domain.EventQuestionStarted), "")
	payload, _ := started.Payload.(map[string]any)
	questionID := int64(payload["questionId"].(float64))
	for _, opt := range payload["options"].([]any) {
		if _, leaked := opt.(map[string]any)["correct"]; leaked {
			t.Fatalf("question broadcast must not reveal correctness")
		}
	}

	send(t, guest, "answer", map[string]any{"optionId": questionID*10 + 2})
	reply := readUntil(t, guest, "reply", "answer")
	result := reply.Payload.(map[string]any)
	if result["isCorrect"] != true || result["score"].(float64) < 100 {
		t.Fatalf("unexpected answer result %+v", result)
	}

	send(t, guest, "answer", map[string]any{"optionId": questionID*10 + 2})
	failure := readUntil(t, guest, "error", "answer")
	if msg := failure.Payload.(map[string]any)["message"]; msg != domain.ErrAlreadyAnswered.Error() {
		t.Fatalf("expected already answered, got %v", msg)
	}

	send(t, guest, "dance", nil)
	readUntil(t, guest, "error", "dance")

	send(t, host, "finish", nil)
	readUntil(t, host, "reply", "finish")
	finished := readUntil(t, guest, string(domain.EventGameFinished), "")
	standings := finished.Payload.(map[string]any)["standings"].([]any)
	if len(standings) != 1 {
		t.Fatalf("expected only the guest to score, got %+v", standings)
	}
}

func TestWebSocketRequiresKnownRoom(t *testing.T) {
	server := newTestServer(t, nil)
	conn := dial(t, server.URL, "missing", "userId=u1")
	msg := readUntil(t, conn, "error", "")
	if msg.Payload.(map[string]any)["message"] != domain.ErrRoomNotFound.Error() {
		t.Fatalf("unexpected error %+v", msg.Payload)
	}
}

func TestIdentityWithTokens(t *testing.T) {
	tokens := auth.NewTokens("test-secret")
	identity := NewIdentity(tokens)
	token, err := tokens.Issue("user-9", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/rooms?userId=spoofed", nil)
	if _, err := identity.UserID(r); err == nil {
		t.Fatalf("query user id must be ignored when tokens are configured")
	}

	r.Header.Set("Authorization", "Bearer "+token)
	if id, err := identity.UserID(r); err != nil || id != "user-9" {
		t.Fatalf("expected user-9, got %q %v", id, err)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	if id, err := identity.UserID(r); err != nil || id != "user-9" {
		t.Fatalf("expected token query to work, got %q %v", id, err)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil)
	if _, err := identity.UserID(r); err == nil {
		t.Fatalf("expected invalid token rejected")
	}
}

type wireMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Payload any    `json:"payload"`
}

func postRoom(t *testing.T, url, body string) *http.Response {
	t.Helper()
	if body == "" {
		body = `{"studySetId":1,"name":"Quiz Night","visibility":"public","timeLimitSeconds":15,"questionCount":5}`
	}
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post room: %v", err)
	}
	return resp
}

func createRoom(t *testing.T, baseURL, userID string) string {
	t.Helper()
	resp := postRoom(t, baseURL+"/rooms?userId="+userID, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var state struct {
		Room struct {
			ID string `json:"id"`
		} `json:"room"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if state.Room.ID == "" {
		t.Fatalf("expected a public room id")
	}
	return state.Room.ID
}

func dial(t *testing.T, baseURL, roomID, query string) *websocket.Conn {
	t.Helper()
	u := fmt.Sprintf("ws%s/ws?room=%s&%s", baseURL[len("http"):], roomID, query)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips interleaved events until a message of the wanted type (and
// command, when given) arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ, command string) wireMessage {
	t.Helper()
	for i := 0; i < 32; i++ {
		var msg wireMessage
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (command == "" || msg.Command == command) {
			return msg
		}
	}
	t.Fatalf("no %s/%s message within 32 reads", typ, command)
	return wireMessage{}
}

func sampleBank() *memory.StaticQuestionBank {
	var questions []domain.Question
	for id := int64(1); id <= 6; id++ {
		questions = append(questions, domain.Question{
			ID:         id,
			StudySetID: 1,
			Text:       fmt.Sprintf("Question %d", id),
			Options: []domain.Option{
				{ID: id*10 + 1, Text: "no"},
				{ID: id*10 + 2, Text: "yes", Correct: true},
				{ID: id*10 + 3, Text: "maybe"},
			},
		})
	}
	return memory.NewStaticQuestionBank([]domain.StudySet{{ID: 1, OwnerID: "host", Title: "Basics"}}, questions)
}
