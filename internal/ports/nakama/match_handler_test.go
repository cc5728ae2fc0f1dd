package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"mesa/internal/app"
	"mesa/internal/domain"
	"mesa/internal/domain/escrow"
	"mesa/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode     int64
	event      string
	data       map[string]interface{}
	recipients []string // nil means broadcast
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	sent   []sentMessage
	kicked []string
	labels []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	var envelope struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	msg := sentMessage{opCode: opCode, event: envelope.Event, data: envelope.Data}
	for _, p := range presences {
		msg.recipients = append(msg.recipients, p.GetUserId())
	}
	md.sent = append(md.sent, msg)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	for _, p := range presences {
		md.kicked = append(md.kicked, p.GetUserId())
	}
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

func (md *mockDispatcher) events(name string) []sentMessage {
	var out []sentMessage
	for _, m := range md.sent {
		if m.event == name {
			out = append(out, m)
		}
	}
	return out
}

func (md *mockDispatcher) reset() {
	md.sent = nil
	md.kicked = nil
}

type testPresence struct {
	userID    string
	sessionID string
}

func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return false }
func (p testPresence) GetUsername() string               { return p.userID }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return p.sessionID }
func (p testPresence) GetNodeId() string                 { return "node" }

func presence(userID string) testPresence {
	return testPresence{userID: userID, sessionID: "sess-" + userID}
}

type testMatchData struct {
	testPresence
	opCode int64
	data   []byte
}

func (d testMatchData) GetOpCode() int64      { return d.opCode }
func (d testMatchData) GetData() []byte       { return d.data }
func (d testMatchData) GetReliable() bool     { return true }
func (d testMatchData) GetReceiveTime() int64 { return 0 }

func message(userID string, opCode int64, body string) runtime.MatchData {
	return testMatchData{testPresence: presence(userID), opCode: opCode, data: []byte(body)}
}

type fakeEconomy struct {
	balances map[string]int64 // user:CUR
	updates  [][]ports.WalletUpdate
}

func (f *fakeEconomy) GetBalance(ctx context.Context, userID, currency string) (int64, error) {
	return f.balances[userID+":"+currency], nil
}

func (f *fakeEconomy) UpdateBalances(ctx context.Context, updates []ports.WalletUpdate) error {
	for _, u := range updates {
		if f.balances[u.UserID+":"+u.Currency]+u.Amount < 0 {
			return fmt.Errorf("wallet of %s would go negative", u.UserID)
		}
	}
	for _, u := range updates {
		f.balances[u.UserID+":"+u.Currency] += u.Amount
	}
	f.updates = append(f.updates, updates)
	return nil
}

type fakeAccounts struct {
	currency map[string]string
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, userID, username, displayName string) error {
	return nil
}

func (f *fakeAccounts) SetCurrency(ctx context.Context, userID, currency string) error {
	f.currency[userID] = currency
	return nil
}

func (f *fakeAccounts) GetProfile(ctx context.Context, userID string) (ports.Profile, error) {
	return ports.Profile{UserID: userID, DisplayName: "Player " + userID, Currency: f.currency[userID]}, nil
}

type harness struct {
	t          *testing.T
	ctx        context.Context
	handler    *matchHandler
	economy    *fakeEconomy
	dispatcher *mockDispatcher
	state      *MatchState
	tick       int64
}

func newHarness(t *testing.T, params map[string]interface{}) *harness {
	t.Helper()
	economy := &fakeEconomy{balances: map[string]int64{}}
	accounts := &fakeAccounts{currency: map[string]string{}}
	opts := app.DefaultOptions()
	opts.InactivityTicks = 10
	handler := newMatchHandler(economy, accounts, escrow.NewRateBook(nil), app.NewResumeTokens("secret", 0), opts, 1)

	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_MATCH_ID, "room-1.node")
	state, tickRate, label := handler.MatchInit(ctx, noopLogger{}, nil, nil, params)
	require.NotNil(t, state)
	assert.Equal(t, 1, tickRate)
	assert.Equal(t, float64(4), labelField(t, label, MatchLabelKey_OpenSeats))

	return &harness{t: t, ctx: ctx, handler: handler, economy: economy, dispatcher: &mockDispatcher{}, state: state.(*MatchState)}
}

func labelField(t *testing.T, label, key string) interface{} {
	t.Helper()
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(label), &fields))
	return fields[key]
}

func la51Params() map[string]interface{} {
	return map[string]interface{}{"game": "la51", "bet": float64(10), "penalty": float64(5), "betCurrency": "usd"}
}

func (h *harness) join(userID string, balance int64) bool {
	h.economy.balances[userID+":USD"] = balance
	p := presence(userID)
	_, ok, _ := h.handler.MatchJoinAttempt(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, p, nil)
	if ok {
		h.handler.MatchJoin(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, []runtime.Presence{p})
	}
	return ok
}

func (h *harness) loop(messages ...runtime.MatchData) interface{} {
	h.tick++
	return h.handler.MatchLoop(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, messages)
}

func TestMatchInit_RejectsInvalidSettings(t *testing.T) {
	handler := newMatchHandler(&fakeEconomy{}, nil, nil, nil, app.DefaultOptions(), 1)
	state, _, label := handler.MatchInit(context.Background(), noopLogger{}, nil, nil, map[string]interface{}{
		"game": "la51", "bet": 0, "betCurrency": "USD",
	})
	assert.Nil(t, state)
	assert.Empty(t, label)
}

func TestSettingsFromParams(t *testing.T) {
	game, settings, err := settingsFromParams(map[string]interface{}{
		"game": "Parchis", "bet": "25", "penalty": int64(5), "betCurrency": "cop", "parchisMode": "pairs", "autoExit": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.GameParchis, game)
	assert.Equal(t, domain.Settings{Bet: 25, Penalty: 5, Currency: "COP", ParchisMode: domain.ParchisPairs, AutoExit: true}, settings)

	_, _, err = settingsFromParams(map[string]interface{}{"game": "poker", "bet": 1, "betCurrency": "USD"})
	assert.ErrorIs(t, err, app.ErrInvalidSettings)
}

func TestMatchJoin_SeatsPlayersAndUpdatesLabel(t *testing.T) {
	h := newHarness(t, la51Params())

	require.True(t, h.join("u1", 100))
	require.True(t, h.join("u2", 100))

	room := h.state.Room
	assert.Equal(t, "room-1.node", room.ID)
	assert.Equal(t, 0, room.HostSeat)
	assert.Equal(t, "Player u2", room.Seats[1].Name)

	joined := h.dispatcher.events(string(app.EventJoinedRoom))
	require.Len(t, joined, 2)
	assert.Equal(t, []string{"u1"}, joined[0].recipients)
	assert.Equal(t, OpJoinedRoom, joined[0].opCode)
	assert.NotEmpty(t, joined[0].data["resumeToken"])

	states := h.dispatcher.events(string(app.EventRoomState))
	require.NotEmpty(t, states)
	assert.Nil(t, states[len(states)-1].recipients)

	require.NotEmpty(t, h.dispatcher.labels)
	last := h.dispatcher.labels[len(h.dispatcher.labels)-1]
	assert.Equal(t, float64(2), labelField(t, last, MatchLabelKey_OpenSeats))
	assert.Equal(t, "waiting", labelField(t, last, "state"))
}

func TestMatchJoinAttempt_RejectsInsufficientFunds(t *testing.T) {
	h := newHarness(t, la51Params())

	assert.False(t, h.join("poor", 14))
	assert.Nil(t, h.state.Room.Seats[0])
	assert.Empty(t, h.state.Presences)
}

func TestMatchLoop_RejectsOutOfTurnAction(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)
	h.join("u2", 100)

	h.loop(message("u1", OpStartGame, ""))
	require.Equal(t, domain.RoomPlaying, h.state.Room.State)
	started := h.dispatcher.events(string(app.EventGameStarted))
	require.Len(t, started, 2)
	assert.Equal(t, []string{"u1"}, started[0].recipients)
	assert.Equal(t, int64(90), h.economy.balances["u1:USD"])

	h.dispatcher.reset()
	h.loop(message("u2", OpDrawFromDeck, ""))

	rejected := h.dispatcher.events(eventActionRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, []string{"u2"}, rejected[0].recipients)
	assert.Equal(t, OpActionRejected, rejected[0].opCode)
	assert.Equal(t, "not_your_turn", rejected[0].data["code"])
}

func TestMatchLoop_RejectsMalformedPayload(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)

	h.loop(message("u1", OpMeld, `{"cardIds":`), message("u1", 99, ""))

	rejected := h.dispatcher.events(eventActionRejected)
	require.Len(t, rejected, 2)
	for _, r := range rejected {
		assert.Equal(t, "bad_request", r.data["code"])
	}
}

func TestMatchLoop_DrawSendsCardOnlyToDrawer(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)
	h.join("u2", 100)
	h.loop(message("u1", OpStartGame, ""))
	h.dispatcher.reset()

	h.loop(message("u1", OpDrawFromDeck, ""))

	drawn := h.dispatcher.events(string(app.EventCardDrawn))
	require.Len(t, drawn, 1)
	assert.Equal(t, []string{"u1"}, drawn[0].recipients)
	others := h.dispatcher.events(string(app.EventPlayerDrewCard))
	require.Len(t, others, 1)
	assert.Equal(t, []string{"u2"}, others[0].recipients)
}

func TestMatchLoop_LeaveMidGameKicksAndSettles(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)
	h.join("u2", 100)
	h.loop(message("u1", OpStartGame, ""))
	h.dispatcher.reset()

	h.loop(message("u2", OpLeaveGame, ""))

	assert.Equal(t, []string{"u2"}, h.dispatcher.kicked)
	assert.NotContains(t, h.state.Presences, "u2")
	require.Len(t, h.dispatcher.events(string(app.EventGameEnd)), 1)
	assert.Equal(t, domain.RoomPostGame, h.state.Room.State)
	// Pot is 2 bets plus the penalty; the winner gets it less 10%.
	assert.Equal(t, int64(90+22), h.economy.balances["u1:USD"])
	assert.Equal(t, int64(85), h.economy.balances["u2:USD"])
}

func TestMatchLoop_InactivityKicksIdlePlayer(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)
	h.join("u2", 100)
	h.loop(message("u1", OpStartGame, ""))

	for i := 0; i < 10; i++ {
		h.loop()
	}

	assert.Contains(t, h.dispatcher.kicked, "u1")
	assert.Equal(t, domain.RoomPostGame, h.state.Room.State)
}

func TestMatchLeave_KeepsSeatDuringGame(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)
	h.join("u2", 100)
	h.loop(message("u1", OpStartGame, ""))

	h.handler.MatchLeave(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, []runtime.Presence{presence("u2")})

	require.NotNil(t, h.state.Room.Seats[1])
	assert.False(t, h.state.Room.Seats[1].Connected)
	assert.Equal(t, domain.RoomPlaying, h.state.Room.State)
}

func TestMatchLeave_IgnoresStaleSession(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)

	stale := testPresence{userID: "u1", sessionID: "old"}
	h.handler.MatchLeave(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, []runtime.Presence{stale})

	assert.Contains(t, h.state.Presences, "u1")
	assert.NotNil(t, h.state.Room.Seats[0])
}

func TestMatchLoop_TerminatesEmptyRoomAfterGrace(t *testing.T) {
	h := newHarness(t, la51Params())

	var result interface{}
	for i := 0; i <= emptyRoomSeconds; i++ {
		result = h.loop()
	}
	assert.Nil(t, result)
}

func TestDispatch_TargetedEventsSkipDisconnectedRecipients(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)
	h.dispatcher.reset()

	h.handler.dispatch(h.state, h.dispatcher, noopLogger{}, app.Event{Kind: app.EventCardDrawn, Payload: map[string]int{}, Recipients: []string{"ghost"}})
	assert.Empty(t, h.dispatcher.sent)

	h.handler.dispatch(h.state, h.dispatcher, noopLogger{}, app.Event{Kind: app.EventPlayerDrewCard, Payload: map[string]int{}, Except: []string{"u1"}})
	assert.Empty(t, h.dispatcher.sent)

	h.join("u2", 100)
	h.dispatcher.reset()
	h.handler.dispatch(h.state, h.dispatcher, noopLogger{}, app.Event{Kind: app.EventPlayerDrewCard, Payload: map[string]int{}, Except: []string{"u1"}})
	require.Len(t, h.dispatcher.sent, 1)
	assert.Equal(t, []string{"u2"}, h.dispatcher.sent[0].recipients)
}

func TestMatchSignal_ResumeReturnsSnapshot(t *testing.T) {
	h := newHarness(t, la51Params())
	h.join("u1", 100)
	h.join("u2", 100)
	h.loop(message("u1", OpStartGame, ""))

	_, result := h.handler.MatchSignal(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, `{"op":"resume","userId":"u2"}`)
	var envelope struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(result), &envelope))
	assert.Equal(t, string(app.EventGameResumed), envelope.Event)
	assert.Equal(t, float64(1), envelope.Data["yourSeat"])
	assert.Equal(t, "u1", envelope.Data["currentPlayerId"])

	_, result = h.handler.MatchSignal(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, `{"op":"resume","userId":"stranger"}`)
	assert.JSONEq(t, `{"error":"room_not_found"}`, result)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{app.ErrInsufficientFunds, "insufficient_funds"},
		{app.ErrNotYourTurn, "not_your_turn"},
		{app.ErrNotHost, "illegal_action"},
		{app.ErrRoomNotFound, "room_not_found"},
		{fmt.Errorf("%w: 7", ErrUnknownOpCode), "bad_request"},
		{fmt.Errorf("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), tt.err.Error())
	}
}
