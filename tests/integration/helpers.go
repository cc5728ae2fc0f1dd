// Package integration drives a running Nakama with the mesa module loaded.
// Set MESA_INTEGRATION=1 to run it.
package integration

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

const (
	ServerKey = "defaultkey"
	Host      = "127.0.0.1"
	Port      = 7350
)

// Opcodes mirrored from the server module.
const (
	OpStartGame    int64 = 1
	OpDrawFromDeck int64 = 2
	OpSendChat     int64 = 12
	OpJoinedRoom   int64 = 101
	OpGameStarted  int64 = 108
	OpCardDrawn    int64 = 109
	OpChatMessage  int64 = 127
	OpRejected     int64 = 131
)

func requireServer(t *testing.T) {
	t.Helper()
	if os.Getenv("MESA_INTEGRATION") == "" {
		t.Skip("MESA_INTEGRATION not set")
	}
}

type TestClient struct {
	HTTP   *resty.Client
	Conn   *websocket.Conn
	Token  string
	UserID string
	cid    atomic.Int64
}

// Envelope is the client half of a Nakama realtime envelope, JSON format.
type Envelope struct {
	Cid           string         `json:"cid,omitempty"`
	MatchJoin     *MatchJoin     `json:"match_join,omitempty"`
	MatchDataSend *MatchDataSend `json:"match_data_send,omitempty"`
	Match         *Match         `json:"match,omitempty"`
	MatchData     *MatchData     `json:"match_data,omitempty"`
	Error         *RealtimeError `json:"error,omitempty"`
}

type MatchJoin struct {
	MatchID string `json:"match_id"`
}

type MatchDataSend struct {
	MatchID string `json:"match_id"`
	OpCode  string `json:"op_code"`
	Data    string `json:"data,omitempty"`
}

type Match struct {
	MatchID string `json:"match_id"`
}

type MatchData struct {
	MatchID string `json:"match_id"`
	OpCode  string `json:"op_code"`
	Data    string `json:"data"`
}

type RealtimeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ServerEvent is the decoded {"event", "data"} body the module sends.
type ServerEvent struct {
	OpCode int64
	Event  string                 `json:"event"`
	Data   map[string]interface{} `json:"data"`
}

func NewTestClient(t *testing.T) *TestClient {
	t.Helper()
	base := fmt.Sprintf("http://%s:%d", Host, Port)
	client := resty.New().SetBaseURL(base).SetTimeout(5 * time.Second)

	// Create unique ID
	deviceID := fmt.Sprintf("test_device_%d", time.Now().UnixNano())

	var session struct {
		Token string `json:"token"`
	}
	resp, err := client.R().
		SetBasicAuth(ServerKey, "").
		SetQueryParam("create", "true").
		SetBody(map[string]string{"id": deviceID}).
		SetResult(&session).
		Post("/v2/account/authenticate/device")
	if err != nil || resp.IsError() {
		t.Fatalf("Failed to authenticate: %v %s", err, resp.String())
	}
	client.SetAuthToken(session.Token)

	var account struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	resp, err = client.R().SetResult(&account).Get("/v2/account")
	if err != nil || resp.IsError() {
		t.Fatalf("Failed to load account: %v %s", err, resp.String())
	}

	wsURL := fmt.Sprintf("ws://%s:%d/ws?status=true&token=%s", Host, Port, url.QueryEscape(session.Token))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect socket: %v", err)
	}

	return &TestClient{HTTP: client, Conn: conn, Token: session.Token, UserID: account.User.ID}
}

func (tc *TestClient) Close() {
	if tc.Conn != nil {
		tc.Conn.Close()
	}
}

// RPC calls a server RPC; Nakama expects the payload as a JSON string.
func (tc *TestClient) RPC(t *testing.T, id string, payload interface{}) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var out struct {
		Payload string `json:"payload"`
	}
	resp, err := tc.HTTP.R().SetBody(strconv.Quote(string(raw))).SetResult(&out).Post("/v2/rpc/" + id)
	if err != nil || resp.IsError() {
		t.Fatalf("RPC %s failed: %v %s", id, err, resp.String())
	}
	return out.Payload
}

// QuickMatchAndJoin calls quick_match and joins the returned room.
func (tc *TestClient) QuickMatchAndJoin(t *testing.T, game, tier string) string {
	t.Helper()
	var resp struct {
		MatchID string `json:"match_id"`
	}
	raw := tc.RPC(t, "quick_match", map[string]string{"game": game, "tier": tier})
	if err := json.Unmarshal([]byte(raw), &resp); err != nil || resp.MatchID == "" {
		t.Fatalf("quick_match returned %q: %v", raw, err)
	}
	tc.Join(t, resp.MatchID)
	return resp.MatchID
}

func (tc *TestClient) Join(t *testing.T, matchID string) {
	t.Helper()
	cid := strconv.FormatInt(tc.cid.Add(1), 10)
	if err := tc.Conn.WriteJSON(Envelope{Cid: cid, MatchJoin: &MatchJoin{MatchID: matchID}}); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		env := tc.read(t, deadline)
		if env.Cid != cid {
			continue
		}
		if env.Error != nil {
			t.Fatalf("Failed to join match %s: %s", matchID, env.Error.Message)
		}
		return
	}
}

func (tc *TestClient) Send(t *testing.T, matchID string, opCode int64, body interface{}) {
	t.Helper()
	msg := &MatchDataSend{MatchID: matchID, OpCode: strconv.FormatInt(opCode, 10)}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		msg.Data = base64.StdEncoding.EncodeToString(raw)
	}
	if err := tc.Conn.WriteJSON(Envelope{MatchDataSend: msg}); err != nil {
		t.Fatalf("Failed to send opcode %d: %v", opCode, err)
	}
}

// WaitFor reads until an event with opCode arrives.
func (tc *TestClient) WaitFor(t *testing.T, opCode int64, timeout time.Duration) ServerEvent {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		env := tc.read(t, deadline)
		if env.MatchData == nil || env.MatchData.OpCode != strconv.FormatInt(opCode, 10) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(env.MatchData.Data)
		if err != nil {
			t.Fatalf("decode match data: %v", err)
		}
		ev := ServerEvent{OpCode: opCode}
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	}
}

func (tc *TestClient) read(t *testing.T, deadline time.Time) Envelope {
	t.Helper()
	if err := tc.Conn.SetReadDeadline(deadline); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var env Envelope
	if err := tc.Conn.ReadJSON(&env); err != nil {
		t.Fatalf("Timeout or read error: %v", err)
	}
	return env
}
