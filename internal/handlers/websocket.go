package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/typewars/typewars-server/internal/game"
	"github.com/typewars/typewars-server/internal/hub"
	"github.com/typewars/typewars-server/internal/metrics"
	"github.com/typewars/typewars-server/internal/words"
)

// CloseJoinRefused is the close code sent when a player cannot enter the
// session: unknown session, finished game, full room, wrong password.
const CloseJoinRefused = 3418

// reservedEventTypes are produced by the endpoint itself and rejected when
// they arrive over the wire.
var reservedEventTypes = map[string]struct{}{
	game.EventPlayerJoined: {},
	game.EventPlayerLeft:   {},
	game.EventTriggerTick:  {},
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wireMessage is the inbound frame shape. Data stays raw until the event
// type picks a payload decoding.
type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// client is one websocket connection bound to one player in one session.
type client struct {
	api        *API
	log        *log.Logger
	conn       *websocket.Conn
	sessionID  string
	record     *game.PlayerRecord
	controller *game.Controller

	writeMu sync.Mutex

	hostMu  sync.Mutex
	hostSub *hub.Subscription
}

// HandlePlay upgrades the connection and runs the session protocol for one
// player. Identity comes from an access token (query or path) or, for
// guests, a username query parameter.
func (a *API) HandlePlay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sessionID := ps.ByName("session_id")
	record, err := a.resolvePlayer(r, ps)
	if err != nil {
		metrics.ConnectionErrors.Inc()
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Log.Error("websocket upgrade failed", "session", sessionID, "err", err)
		metrics.ConnectionErrors.Inc()
		return
	}
	metrics.TotalConnections.Inc()
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	c := &client{
		api:       a,
		log:       a.Log.With("session", sessionID, "player", record.ID),
		conn:      conn,
		sessionID: sessionID,
		record:    record,
	}
	c.serve(r.URL.Query().Get("password"))
}

// resolvePlayer turns the request credentials into a durable player record.
// A verifying token wins over the username parameter; a token that does not
// verify falls back to guest identity.
func (a *API) resolvePlayer(r *http.Request, ps httprouter.Params) (*game.PlayerRecord, error) {
	token := ps.ByName("token")
	if token == "" {
		token = r.URL.Query().Get("jwt")
	}
	if token != "" {
		if playerID, err := a.Auth.VerifyAccess(token); err == nil {
			return a.Store.PlayerByID(playerID)
		}
	}
	if username := r.URL.Query().Get("username"); username != "" {
		return a.Store.CreateAnonymousPlayer(username)
	}
	return nil, errors.New("either credentials or username required")
}

// controllerFactory builds a session's controller with its own word stream.
func (a *API) controllerFactory(sessionID string) (*game.Controller, error) {
	provider, err := words.NewProvider(a.Words, time.Now().UnixNano())
	if err != nil {
		return nil, err
	}
	return game.NewController(a.Store, provider, sessionID)
}

func (c *client) serve(password string) {
	defer c.conn.Close()

	controller, err := c.api.Registry.GetOrCreate(c.api.controllerFactory, c.sessionID)
	if err != nil {
		c.log.Info("controller refused", "err", err)
		c.sendEvent(errorEvent(err))
		c.closeWith(CloseJoinRefused, err.Error())
		return
	}
	c.controller = controller

	events, err := controller.PlayerEvent(game.Event{
		Type: game.EventPlayerJoined,
		Data: game.PlayerMessage{
			Player:  c.record,
			Payload: game.JoinPayload{Password: password},
		},
	})
	if err != nil {
		c.log.Info("join refused", "err", err)
		c.sendEvent(errorEvent(err))
		c.closeWith(CloseJoinRefused, err.Error())
		c.api.Registry.Release(c.sessionID)
		return
	}

	sub := c.api.Hub.Subscribe(c.sessionID)
	go c.pumpSession(sub)
	c.deliver(events)

	if controller.HostID() == nil {
		if err := controller.SetHost(c.record); err == nil {
			c.becomeHost()
		}
	}

	c.log.Info("player connected")
	c.readLoop()
	c.disconnect(sub)
}

// pumpSession forwards session broadcasts to the socket. A NEW_HOST event
// naming this player promotes the connection to host duty.
func (c *client) pumpSession(sub *hub.Subscription) {
	for {
		select {
		case ev := <-sub.C:
			if ev.Type == game.EventNewHost {
				if id, ok := ev.Data.(int64); ok && id == c.record.ID {
					c.becomeHost()
				}
			}
			c.sendEvent(ev)
		case <-sub.Done():
			return
		}
	}
}

// becomeHost subscribes to the tick feed. Idempotent.
func (c *client) becomeHost() {
	c.hostMu.Lock()
	defer c.hostMu.Unlock()
	if c.hostSub != nil {
		return
	}
	c.hostSub = c.api.Hub.SubscribeHosts()
	c.log.Info("promoted to host")
	go c.pumpTicks(c.hostSub)
}

// pumpTicks feeds each tick signal into the controller and fans out
// whatever the stage machine produced.
func (c *client) pumpTicks(sub *hub.Subscription) {
	for {
		select {
		case <-sub.C:
			events, err := c.controller.PlayerEvent(game.Event{
				Type: game.EventTriggerTick,
				Data: game.PlayerMessage{Player: c.record},
			})
			if err != nil {
				c.log.Error("tick processing failed", "err", err)
				continue
			}
			c.deliver(events)
		case <-sub.Done():
			return
		}
	}
}

// readLoop drives the connection: inbound frames, ping keepalive, read
// deadline enforcement.
func (c *client) readLoop() {
	c.conn.SetReadDeadline(time.Now().Add(c.api.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.api.ReadTimeout))
		return nil
	})

	messageChan := make(chan []byte, 10)
	errorChan := make(chan error, 1)
	go func() {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			messageChan <- data
		}
	}()

	ticker := time.NewTicker(c.api.PingRate)
	defer ticker.Stop()

	for {
		select {
		case data := <-messageChan:
			c.conn.SetReadDeadline(time.Now().Add(c.api.ReadTimeout))
			metrics.BytesReceived.Add(float64(len(data)))
			c.handleMessage(data)

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", "err", err)
			}
			return

		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.api.ReadTimeout))
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Warn("ping failed", "err", err)
				}
				return
			}
		}
	}
}

// handleMessage validates one inbound frame and dispatches it.
func (c *client) handleMessage(data []byte) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		c.sendEvent(errorEvent(fmt.Errorf("%w: frames must be {type, data}", game.ErrInvalidMessage)))
		return
	}
	if _, reserved := reservedEventTypes[msg.Type]; reserved {
		c.sendEvent(errorEvent(fmt.Errorf("%w: type %q is reserved", game.ErrInvalidMessage, msg.Type)))
		return
	}
	metrics.MessagesReceived.WithLabelValues(msg.Type).Inc()

	payload, err := decodePayload(msg)
	if err != nil {
		c.sendEvent(errorEvent(err))
		return
	}
	events, err := c.controller.PlayerEvent(game.Event{
		Type: msg.Type,
		Data: game.PlayerMessage{Player: c.record, Payload: payload},
	})
	if err != nil {
		c.sendEvent(errorEvent(err))
		return
	}
	c.deliver(events)
}

// decodePayload maps each wire type onto its expected payload shape.
func decodePayload(msg wireMessage) (any, error) {
	switch msg.Type {
	case game.EventPlayerReadyState:
		var ready bool
		if err := json.Unmarshal(msg.Data, &ready); err != nil {
			return nil, fmt.Errorf("%w: ready state must be a boolean", game.ErrInvalidMessage)
		}
		return ready, nil
	case game.EventPlayerWord, game.EventPlayerModeVote, game.EventPlayerSwitchTeam:
		var s string
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			return nil, fmt.Errorf("%w: payload must be a string", game.ErrInvalidMessage)
		}
		return s, nil
	}
	return nil, nil
}

// deliver routes controller output: player-targeted events go straight to
// this socket, broadcasts fan out through the hub.
func (c *client) deliver(events []game.Event) {
	for _, ev := range events {
		if ev.Target == game.TargetPlayer {
			c.sendEvent(ev)
			continue
		}
		c.api.Hub.Publish(c.sessionID, ev)
	}
}

// sendEvent writes one {type, data} frame. Writes are serialized.
func (c *client) sendEvent(ev game.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("cannot marshal event", "type", ev.Type, "err", err)
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		metrics.MessageSendErrors.WithLabelValues(ev.Type).Inc()
		return
	}
	metrics.MessagesSent.WithLabelValues(ev.Type).Inc()
	metrics.BytesSent.Add(float64(len(payload)))
}

func (c *client) closeWith(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

// disconnect runs the leave sequence: notify the controller, fan out the
// farewell events, drop subscriptions and release the controller reference.
func (c *client) disconnect(sub *hub.Subscription) {
	events, err := c.controller.PlayerEvent(game.Event{
		Type: game.EventPlayerLeft,
		Data: game.PlayerMessage{Player: c.record},
	})
	if err != nil {
		c.log.Error("leave processing failed", "err", err)
	}
	c.api.Hub.Unsubscribe(c.sessionID, sub)
	c.deliver(events)

	c.hostMu.Lock()
	if c.hostSub != nil {
		c.api.Hub.UnsubscribeHosts(c.hostSub)
		c.hostSub = nil
	}
	c.hostMu.Unlock()

	c.api.Registry.Release(c.sessionID)
	c.log.Info("player disconnected")
}

func errorEvent(err error) game.Event {
	return game.Event{Type: game.EventError, Target: game.TargetPlayer, Data: err.Error()}
}
