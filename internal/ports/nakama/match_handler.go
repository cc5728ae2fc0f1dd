package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"mesa/internal/app"
	"mesa/internal/domain"
	"mesa/internal/domain/escrow"
	"mesa/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// emptyRoomSeconds is how long a room with nobody in it survives, so the
// creator has time to join after create_room.
const emptyRoomSeconds = 30

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Room      *app.Room                   `json:"room"`
	Presences map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	App       *app.Service                `json:"-"`

	pending    map[string]app.Session // admitted in MatchJoinAttempt, seated in MatchJoin
	label      string
	emptySince int64
	tickRate   int
}

// matchHandler is the per-room actor. Nakama calls every hook from the
// match's own goroutine, so MatchState needs no locking.
type matchHandler struct {
	economy  ports.EconomyPort
	accounts ports.AccountPort
	rates    *escrow.RateBook
	tokens   *app.ResumeTokens
	opts     app.Options
	tickRate int
}

func newMatchHandler(economy ports.EconomyPort, accounts ports.AccountPort, rates *escrow.RateBook, tokens *app.ResumeTokens, opts app.Options, tickRate int) *matchHandler {
	if tickRate <= 0 {
		tickRate = 1
	}
	return &matchHandler{economy: economy, accounts: accounts, rates: rates, tokens: tokens, opts: opts, tickRate: tickRate}
}

// settingsFromParams reads room settings from MatchCreate params.
func settingsFromParams(params map[string]interface{}) (domain.GameType, domain.Settings, error) {
	game := domain.GameType(strings.ToLower(paramString(params, "game")))
	settings := domain.Settings{
		Bet:         paramInt64(params, "bet"),
		Penalty:     paramInt64(params, "penalty"),
		Currency:    strings.ToUpper(paramString(params, "betCurrency")),
		ParchisMode: domain.ParchisMode(paramString(params, "parchisMode")),
		AutoExit:    paramBool(params, "autoExit"),
	}
	if err := settings.Validate(game); err != nil {
		return game, settings, fmt.Errorf("%w: %v", app.ErrInvalidSettings, err)
	}
	return game, settings, nil
}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	game, settings, err := settingsFromParams(params)
	if err != nil {
		logger.Error("MatchInit: %v", err)
		return nil, 0, ""
	}
	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)

	svc := app.NewService(mh.economy, mh.rates, mh.opts, rand.New(rand.NewSource(time.Now().UnixNano()))).
		WithResumeTokens(mh.tokens)
	state := &MatchState{
		Room:      app.NewRoom(matchID, game, settings),
		Presences: make(map[string]runtime.Presence),
		App:       svc,
		pending:   make(map[string]app.Session),
		tickRate:  mh.tickRate,
	}

	label, err := roomLabel(state.Room)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	state.label = label

	logger.WithField("match_id", matchID).Info("MatchInit: %s room, bet %d %s", game, settings.Bet, settings.Currency)
	return state, mh.tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	matchState.Room.Tick = tick

	sess := mh.session(ctx, logger, presence)
	if err := matchState.App.AdmitJoin(ctx, matchState.Room, sess); err != nil {
		logger.Info("MatchJoinAttempt: rejecting %s: %v", sess.UserID, err)
		return matchState, false, err.Error()
	}
	matchState.pending[sess.UserID] = sess
	return matchState, true, ""
}

// session builds the join identity from the presence and the account profile.
func (mh *matchHandler) session(ctx context.Context, logger runtime.Logger, p runtime.Presence) app.Session {
	sess := app.Session{
		UserID:   p.GetUserId(),
		PlayerID: p.GetSessionId(),
		Username: p.GetUsername(),
	}
	if mh.accounts == nil {
		return sess
	}
	profile, err := mh.accounts.GetProfile(ctx, sess.UserID)
	if err != nil {
		logger.Warn("Failed to load profile for %s: %v", sess.UserID, err)
		return sess
	}
	if profile.DisplayName != "" {
		sess.Username = profile.DisplayName
	}
	sess.Avatar = profile.AvatarURL
	sess.Currency = profile.Currency
	return sess
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}
	matchState.Room.Tick = tick

	for _, p := range presences {
		userID := p.GetUserId()
		matchState.Presences[userID] = p

		sess, ok := matchState.pending[userID]
		if !ok {
			sess = mh.session(ctx, logger, p)
		}
		delete(matchState.pending, userID)
		sess.PlayerID = p.GetSessionId()

		events, err := matchState.App.JoinRoom(ctx, matchState.Room, sess)
		mh.dispatchAll(matchState, dispatcher, logger, events)
		if err != nil {
			// Balance changed between the attempt and the join.
			logger.Warn("MatchJoin: %s could not join: %v", userID, err)
			mh.sendTo(matchState, dispatcher, logger, userID, OpJoinError, eventJoinError, map[string]string{"message": err.Error()})
			mh.kick(matchState, dispatcher, logger, userID)
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}
	matchState.Room.Tick = tick

	for _, p := range presences {
		userID := p.GetUserId()
		current, ok := matchState.Presences[userID]
		if ok && current.GetSessionId() != p.GetSessionId() {
			// An older connection closed after the user reconnected.
			continue
		}
		delete(matchState.Presences, userID)

		events, err := matchState.App.Disconnect(ctx, matchState.Room, userID)
		if err != nil {
			logger.Warn("MatchLeave: %v", err)
		}
		mh.dispatchAll(matchState, dispatcher, logger, events)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}
	room := matchState.Room
	room.Tick = tick
	log := logger.WithField("match_id", room.ID)

	for _, msg := range messages {
		userID := msg.GetUserId()
		action, err := decodeAction(msg.GetOpCode(), userID, msg.GetData())
		if err != nil {
			log.Warn("MatchLoop: %s sent opcode %d: %v", userID, msg.GetOpCode(), err)
			mh.reject(matchState, dispatcher, log, userID, err)
			continue
		}

		events, err := matchState.App.Handle(ctx, room, action)
		mh.dispatchAll(matchState, dispatcher, log, events)
		if err != nil {
			mh.reject(matchState, dispatcher, log, userID, err)
			continue
		}
		if _, leaving := action.(app.LeaveGame); leaving {
			mh.kick(matchState, dispatcher, log, userID)
		}
		mh.kickRedirected(matchState, dispatcher, log, events)
	}

	events, err := matchState.App.Tick(ctx, room, tick)
	if err != nil {
		log.Error("MatchLoop: timer failed: %v", err)
	}
	mh.dispatchAll(matchState, dispatcher, log, events)
	mh.kickRedirected(matchState, dispatcher, log, events)

	mh.updateLabel(matchState, dispatcher, log)

	if room.Empty() && len(matchState.Presences) == 0 {
		if matchState.emptySince == 0 {
			matchState.emptySince = tick
		}
		if tick-matchState.emptySince >= int64(emptyRoomSeconds*matchState.tickRate) {
			log.Info("MatchLoop: Terminating empty room.")
			return nil
		}
	} else {
		matchState.emptySince = 0
	}
	return matchState
}

// kickRedirected removes players whose elimination sends them back to the lobby.
func (mh *matchHandler) kickRedirected(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		if ev.Kind != app.EventPlayerEliminated {
			continue
		}
		if p, ok := ev.Payload.(app.EliminatedPayload); ok && p.Redirect {
			mh.kick(state, dispatcher, logger, p.UserID)
		}
	}
}

func (mh *matchHandler) kick(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	presence, ok := state.Presences[userID]
	if !ok {
		return
	}
	delete(state.Presences, userID)
	if err := dispatcher.MatchKick([]runtime.Presence{presence}); err != nil {
		logger.Warn("Failed to kick %s: %v", userID, err)
	}
}

func (mh *matchHandler) dispatchAll(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		mh.dispatch(state, dispatcher, logger, ev)
	}
}

// dispatch encodes an app event and sends it to its audience.
func (mh *matchHandler) dispatch(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	opCode, ok := eventOpCodes[ev.Kind]
	if !ok {
		logger.Warn("Unknown event kind: %v", ev.Kind)
		return
	}
	bytes, err := encodeEnvelope(string(ev.Kind), ev.Payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	// Determine recipients (default to broadcast)
	var recipients []runtime.Presence
	switch {
	case len(ev.Recipients) > 0:
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		// If we had intended recipients but none are connected,
		// we MUST NOT broadcast to everyone else.
		if len(recipients) == 0 {
			return
		}
	case len(ev.Except) > 0:
		skip := make(map[string]bool, len(ev.Except))
		for _, uid := range ev.Except {
			skip[uid] = true
		}
		for uid, p := range state.Presences {
			if !skip[uid] {
				recipients = append(recipients, p)
			}
		}
		if len(recipients) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true); err != nil {
		logger.Warn("Failed to send %v: %v", ev.Kind, err)
	}
}

func (mh *matchHandler) sendTo(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, opCode int64, event string, payload any) {
	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send %s to %s: Presence not found", event, userID)
		return
	}
	bytes, err := encodeEnvelope(event, payload)
	if err != nil {
		logger.Error("Failed to marshal %s: %v", event, err)
		return
	}
	if err := dispatcher.BroadcastMessage(opCode, bytes, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Warn("Failed to send %s: %v", event, err)
	}
}

type rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// reject tells only the sender that its action was refused.
func (mh *matchHandler) reject(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, err error) {
	mh.sendTo(state, dispatcher, logger, userID, OpActionRejected, eventActionRejected, rejection{Code: errorCode(err), Message: err.Error()})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, app.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, app.ErrInvalidSettings):
		return "invalid_settings"
	case errors.Is(err, app.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, app.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, app.ErrIllegalAction):
		return "illegal_action"
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrUnknownOpCode):
		return "bad_request"
	default:
		return "internal"
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := roomLabel(state.Room)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated with %d seconds grace", graceSeconds)
	return state
}

// signalRequest is sent by the resume_session RPC through MatchSignal.
type signalRequest struct {
	Op     string `json:"op"`
	UserID string `json:"userId"`
}

const signalResume = "resume"

// MatchSignal answers resume requests with the caller's snapshot.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, ""
	}
	var req signalRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil || req.Op != signalResume {
		return matchState, `{"error":"bad_request"}`
	}
	ev, err := matchState.App.Snapshot(matchState.Room, req.UserID)
	if err != nil {
		return matchState, `{"error":"room_not_found"}`
	}
	bytes, err := encodeEnvelope(string(ev.Kind), ev.Payload)
	if err != nil {
		logger.Error("MatchSignal: %v", err)
		return matchState, `{"error":"internal"}`
	}
	return matchState, string(bytes)
}

func paramString(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func paramInt64(params map[string]interface{}, key string) int64 {
	switch v := params[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	}
	return 0
}

func paramBool(params map[string]interface{}, key string) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
