package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/typewars/typewars-server/internal/auth"
	"github.com/typewars/typewars-server/internal/game"
	"github.com/typewars/typewars-server/internal/hub"
	"github.com/typewars/typewars-server/internal/storage"
)

type listSource struct {
	regular []string
	yo      []string
}

func (s listSource) RegularWords() ([]string, error) { return s.regular, nil }
func (s listSource) YoWords() ([]string, error)      { return s.yo, nil }

func newTestAPI(t *testing.T) (*API, *httptest.Server) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	api := &API{
		Log:      log.New(io.Discard),
		Store:    store,
		Hub:      hub.New(),
		Registry: game.NewRegistry(),
		Auth:     auth.NewService("test-secret", time.Minute, time.Hour),
		Words: listSource{
			regular: []string{"карта", "стол", "окно", "дом"},
			yo:      []string{"ёжик"},
		},
		ReadTimeout: 5 * time.Second,
		PingRate:    time.Minute,
	}
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return api, srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("bad frame %s: %v", data, err)
	}
	return frame.Type, frame.Data
}

func readUntil(t *testing.T, conn *websocket.Conn, eventType string) json.RawMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, data := readFrame(t, conn)
		if typ == eventType {
			return data
		}
	}
	t.Fatalf("no %s frame in 20 reads", eventType)
	return nil
}

func TestGuestPlaysSoloGame(t *testing.T) {
	api, srv := newTestAPI(t)
	session, err := api.Store.CreateSession(game.ModeSingle, "solo", "", false, 1, 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/play/"+session.ID+"/?username=alice"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	initial := readUntil(t, conn, game.EventInitialState)
	var state struct {
		Player map[string]any `json:"player"`
		Words  []string       `json:"words"`
	}
	if err := json.Unmarshal(initial, &state); err != nil {
		t.Fatalf("initial_state data: %v", err)
	}
	if state.Player["displayedName"] != "alice" {
		t.Errorf("displayedName = %v, want alice", state.Player["displayedName"])
	}
	if len(state.Words) == 0 {
		t.Fatal("initial_state carries no words")
	}
	readUntil(t, conn, game.EventPlayersUpdate)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ready_state","data":true}`)); err != nil {
		t.Fatalf("write ready: %v", err)
	}
	readUntil(t, conn, game.EventGameBegins)
	readUntil(t, conn, game.EventStartGame)

	// Typing the first expected word scores and yields a fresh word.
	word, _ := json.Marshal(map[string]any{"type": "word", "data": state.Words[0]})
	if err := conn.WriteMessage(websocket.TextMessage, word); err != nil {
		t.Fatalf("write word: %v", err)
	}
	readUntil(t, conn, game.EventNewWord)
	update := readUntil(t, conn, game.EventPlayersUpdate)
	if !bytes.Contains(update, []byte(`"score":`)) {
		t.Errorf("players_update = %s", update)
	}
}

func TestUnknownSessionClosesWithJoinRefused(t *testing.T) {
	_, srv := newTestAPI(t)
	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/play/no-such-session/?username=alice"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok || closeErr.Code != CloseJoinRefused {
		t.Fatalf("err = %v, want close %d", err, CloseJoinRefused)
	}
}

func TestWrongPasswordRefused(t *testing.T) {
	api, srv := newTestAPI(t)
	session, _ := api.Store.CreateSession(game.ModeSingle, "locked", "secret", false, 0, 0)

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/play/"+session.ID+"/?username=alice&password=wrong"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	typ, _ := readFrame(t, conn)
	if typ != game.EventError {
		t.Fatalf("first frame = %q, want error", typ)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok || closeErr.Code != CloseJoinRefused {
		t.Fatalf("err = %v, want close %d", err, CloseJoinRefused)
	}
}

func TestReservedTypesRejected(t *testing.T) {
	api, srv := newTestAPI(t)
	session, _ := api.Store.CreateSession(game.ModeSingle, "room", "", false, 0, 0)

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/play/"+session.ID+"/?username=alice"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, game.EventPlayersUpdate)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"tick","data":null}`))
	typ, _ := readFrame(t, conn)
	if typ != game.EventError {
		t.Fatalf("frame = %q, want error", typ)
	}
}

func TestMissingCredentialsRejected(t *testing.T) {
	api, srv := newTestAPI(t)
	session, _ := api.Store.CreateSession(game.ModeSingle, "room", "", false, 0, 0)

	_, resp, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/play/"+session.ID+"/"), nil)
	if err == nil {
		t.Fatal("dial succeeded without credentials")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %v, want 401", resp)
	}
}

func TestTokenIdentity(t *testing.T) {
	api, srv := newTestAPI(t)
	record, err := api.Store.CreatePlayer("bob", "pw", "Bobby")
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	pair, _ := api.Auth.IssuePair(record.ID)
	session, _ := api.Store.CreateSession(game.ModeSingle, "room", "", false, 0, 0)

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/play/"+session.ID+"/"+pair.Access+"/"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	initial := readUntil(t, conn, game.EventInitialState)
	var state struct {
		Player map[string]any `json:"player"`
	}
	json.Unmarshal(initial, &state)
	if state.Player["displayedName"] != "Bobby" {
		t.Errorf("displayedName = %v, want Bobby", state.Player["displayedName"])
	}
}
