package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mesa/internal/app"
	"mesa/internal/config"
	"mesa/internal/domain"
	"mesa/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnauthenticated    = 16
)

// roomDirectory is the part of runtime.NakamaModule the RPCs need.
type roomDirectory interface {
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
	MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize, maxSize *int, query string) ([]*api.Match, error)
	MatchSignal(ctx context.Context, id string, data string) (string, error)
}

// rpcService backs the room RPCs. checker only runs read-only funds checks,
// so one instance is shared by every call.
type rpcService struct {
	rooms    roomDirectory
	accounts ports.AccountPort
	checker  *app.Service
	tokens   *app.ResumeTokens
	cfg      *config.GameConfig
}

// CreateRoomRequest is the create_room payload. Tier fills in bet, penalty and
// currency when they are not given.
type CreateRoomRequest struct {
	Game        string `json:"game"`
	Tier        string `json:"tier,omitempty"`
	Bet         int64  `json:"bet"`
	Penalty     int64  `json:"penalty"`
	BetCurrency string `json:"betCurrency"`
	ParchisMode string `json:"parchisMode,omitempty"`
	AutoExit    bool   `json:"autoExit"`
}

// RoomCreatedResponse is returned by create_room.
type RoomCreatedResponse struct {
	Event    string          `json:"event"`
	RoomID   string          `json:"roomId"`
	Game     domain.GameType `json:"game"`
	Settings domain.Settings `json:"settings"`
	Warnings []string        `json:"warnings,omitempty"`
}

// QuickMatchRequest selects the game and tier to match into.
type QuickMatchRequest struct {
	Game string `json:"game"`
	Tier string `json:"tier,omitempty"`
}

// QuickMatchResponse is the payload returned to clients when requesting a waiting room.
type QuickMatchResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

type ResumeRequest struct {
	Token string `json:"token"`
}

// ResumeResponse carries the room to rejoin and the gameResumed envelope.
type ResumeResponse struct {
	RoomID   string          `json:"roomId"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func (s *rpcService) RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcCreateRoom, s.rpcCreateRoom); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcQuickMatch, s.rpcQuickMatch); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcResumeSession, s.rpcResumeSession)
}

func (s *rpcService) rpcCreateRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", runtime.NewError("authentication required", codeUnauthenticated)
	}
	var req CreateRoomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", codeInvalidArgument)
	}

	game, settings, err := s.resolveSettings(req)
	if err != nil {
		return "", rpcError(err)
	}

	events, err := s.checker.CheckCreate(ctx, game, settings, s.session(ctx, logger, userID))
	if err != nil {
		logger.Info("RpcCreateRoom [User:%s]: rejected: %v", userID, err)
		return "", rpcError(err)
	}

	matchID, err := s.rooms.MatchCreate(ctx, MatchNameMesa, settingsParams(game, settings))
	if err != nil {
		logger.Error("RpcCreateRoom [User:%s]: Failed to create match: %v", userID, err)
		return "", runtime.NewError("failed to create room", codeInternal)
	}
	logger.Info("RpcCreateRoom [User:%s]: Created %s room %s", userID, game, matchID)

	resp := RoomCreatedResponse{Event: eventRoomCreated, RoomID: matchID, Game: game, Settings: settings}
	for _, ev := range events {
		if w, ok := ev.Payload.(app.RateWarningPayload); ok {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("no exchange rate %s->%s, amounts shown 1:1", w.From, w.To))
		}
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(b), nil
}

// resolveSettings merges the request with its tier.
func (s *rpcService) resolveSettings(req CreateRoomRequest) (domain.GameType, domain.Settings, error) {
	game := domain.GameType(strings.ToLower(req.Game))
	settings := domain.Settings{
		Bet:         req.Bet,
		Penalty:     req.Penalty,
		Currency:    strings.ToUpper(req.BetCurrency),
		ParchisMode: domain.ParchisMode(req.ParchisMode),
		AutoExit:    req.AutoExit,
	}
	if req.Tier != "" || settings.Bet == 0 {
		tier, ok := s.cfg.Tier(req.Tier)
		if !ok {
			return game, settings, fmt.Errorf("%w: unknown tier %q", app.ErrInvalidSettings, req.Tier)
		}
		if settings.Bet == 0 {
			settings.Bet = tier.Bet
		}
		if settings.Penalty == 0 {
			settings.Penalty = tier.Penalty
		}
		if settings.Currency == "" {
			settings.Currency = strings.ToUpper(tier.Currency)
		}
	}
	if err := settings.Validate(game); err != nil {
		return game, settings, fmt.Errorf("%w: %v", app.ErrInvalidSettings, err)
	}
	return game, settings, nil
}

func (s *rpcService) session(ctx context.Context, logger runtime.Logger, userID string) app.Session {
	sess := app.Session{UserID: userID}
	if username, ok := ctx.Value(runtime.RUNTIME_CTX_USERNAME).(string); ok {
		sess.Username = username
	}
	profile, err := s.accounts.GetProfile(ctx, userID)
	if err != nil {
		logger.Warn("Failed to load profile for %s: %v", userID, err)
		return sess
	}
	sess.Currency = profile.Currency
	return sess
}

func settingsParams(game domain.GameType, settings domain.Settings) map[string]interface{} {
	return map[string]interface{}{
		"game":        string(game),
		"bet":         settings.Bet,
		"penalty":     settings.Penalty,
		"betCurrency": settings.Currency,
		"parchisMode": string(settings.ParchisMode),
		"autoExit":    settings.AutoExit,
	}
}

func (s *rpcService) rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	var req QuickMatchRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid payload", codeInvalidArgument)
		}
	}
	if req.Game == "" {
		req.Game = string(domain.GameLa51)
	}

	game, settings, err := s.resolveSettings(CreateRoomRequest{Game: req.Game, Tier: req.Tier})
	if err != nil {
		return "", rpcError(err)
	}
	if _, err := s.checker.CheckCreate(ctx, game, settings, s.session(ctx, logger, userID)); err != nil {
		return "", rpcError(err)
	}

	// Find a waiting room of this game and tier with a free seat.
	query := fmt.Sprintf("+label.%s:>=1 +label.game:%s +label.state:%s +label.currency:%s +label.bet:%d",
		MatchLabelKey_OpenSeats, game, domain.RoomWaiting, settings.Currency, settings.Bet)
	limit := 10
	authoritative := true
	minSize := 0
	maxSize := domain.SeatCount - 1

	matches, err := s.rooms.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, query)
	if err != nil {
		logger.Error("RpcQuickMatch [User:%s]: Failed to list matches: %v", userID, err)
		return "", runtime.NewError("failed to list rooms", codeInternal)
	}

	resp := QuickMatchResponse{}
	if len(matches) > 0 {
		resp.MatchID = matches[0].MatchId
		logger.Info("RpcQuickMatch [User:%s]: Found existing match %s", userID, resp.MatchID)
	} else {
		// Seat/host assignment happens in MatchJoin (server-authoritative).
		matchID, err := s.rooms.MatchCreate(ctx, MatchNameMesa, settingsParams(game, settings))
		if err != nil {
			logger.Error("RpcQuickMatch [User:%s]: Failed to create match: %v", userID, err)
			return "", runtime.NewError("failed to create room", codeInternal)
		}
		resp = QuickMatchResponse{MatchID: matchID, IsNew: true}
		logger.Info("RpcQuickMatch [User:%s]: Created new match %s", userID, matchID)
	}

	b, _ := json.Marshal(resp)
	return string(b), nil
}

// rpcResumeSession trades a resume token for the caller's current snapshot.
// Any failure is terminal for that room; the client goes back to matchmaking.
func (s *rpcService) rpcResumeSession(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", runtime.NewError("authentication required", codeUnauthenticated)
	}
	var req ResumeRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.Token == "" {
		return "", runtime.NewError("token required", codeInvalidArgument)
	}

	claims, err := s.tokens.Verify(req.Token)
	if err != nil {
		logger.Info("RpcResumeSession [User:%s]: %v", userID, err)
		return "", runtime.NewError(app.ErrRoomNotFound.Error(), codeNotFound)
	}
	if claims.Subject != userID {
		return "", runtime.NewError("token belongs to another user", codePermissionDenied)
	}

	signal, _ := json.Marshal(signalRequest{Op: signalResume, UserID: userID})
	result, err := s.rooms.MatchSignal(ctx, claims.RoomID, string(signal))
	if err != nil {
		logger.Info("RpcResumeSession [User:%s]: room %s gone: %v", userID, claims.RoomID, err)
		return "", runtime.NewError(app.ErrRoomNotFound.Error(), codeNotFound)
	}
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(result), &probe); err != nil || probe.Error != "" {
		return "", runtime.NewError(app.ErrRoomNotFound.Error(), codeNotFound)
	}

	b, _ := json.Marshal(ResumeResponse{RoomID: claims.RoomID, Snapshot: json.RawMessage(result)})
	return string(b), nil
}

// rpcError maps app errors onto RPC status codes.
func rpcError(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidSettings):
		return runtime.NewError(err.Error(), codeInvalidArgument)
	case errors.Is(err, app.ErrInsufficientFunds):
		return runtime.NewError(err.Error(), codeFailedPrecondition)
	case errors.Is(err, app.ErrRoomNotFound):
		return runtime.NewError(err.Error(), codeNotFound)
	default:
		return runtime.NewError("internal error", codeInternal)
	}
}
