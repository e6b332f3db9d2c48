package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/baselume-ledger/internal/domain"
)

var alice = domain.MustParseAddress("0x1111111111111111111111111111111111111111")

type staticRankings struct{}

func (staticRankings) TopPlayers(limit int) []domain.LeaderboardEntry {
	return []domain.LeaderboardEntry{{Rank: 1, Player: alice, Score: 20}}
}

func (staticRankings) DailyTopPlayers(day uint64, limit int) []domain.LeaderboardEntry {
	return []domain.LeaderboardEntry{{Rank: 1, Player: alice, Score: day}}
}

func (staticRankings) TotalPlayers() int { return 1 }

func TestValidTopic(t *testing.T) {
	tests := map[string]bool{
		"lifetime":  true,
		"day:0":     true,
		"day:20000": true,
		"day:":      false,
		"day:-1":    false,
		"day:abc":   false,
		"weekly":    false,
		"":          false,
	}
	for topic, want := range tests {
		if got := ValidTopic(topic); got != want {
			t.Errorf("ValidTopic(%q) = %v, want %v", topic, got, want)
		}
	}
	if DayTopic(42) != "day:42" {
		t.Errorf("DayTopic(42) = %q", DayTopic(42))
	}
}

// wsConn wraps a test connection and splits frames that carry several
// newline-separated messages.
type wsConn struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []Message
}

func dial(t *testing.T, server *httptest.Server) *wsConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsConn{t: t, conn: conn}
}

func (c *wsConn) send(msg ClientMessage) {
	c.t.Helper()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("write error = %v", err)
	}
}

func (c *wsConn) next() Message {
	c.t.Helper()
	for len(c.pending) == 0 {
		c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("read error = %v", err)
		}
		for _, part := range bytes.Split(data, []byte{'\n'}) {
			var msg Message
			if err := json.Unmarshal(part, &msg); err != nil {
				c.t.Fatalf("decoding %q: %v", part, err)
			}
			c.pending = append(c.pending, msg)
		}
	}
	msg := c.pending[0]
	c.pending = c.pending[1:]
	return msg
}

func (c *wsConn) expect(msgType string) Message {
	c.t.Helper()
	msg := c.next()
	if msg.Type != msgType {
		c.t.Fatalf("message type = %q, want %q (%+v)", msg.Type, msgType, msg)
	}
	return msg
}

func newTestServer(t *testing.T, rankings RankingReader) (*Hub, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(rankings, 5, logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, logger, w, r)
	}))
	t.Cleanup(server.Close)
	return hub, server
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_SubscribeAndReceiveScores(t *testing.T) {
	hub, server := newTestServer(t, staticRankings{})
	c := dial(t, server)

	c.send(ClientMessage{Type: MessageTypeSubscribe, Topic: DayTopic(100)})
	ack := c.expect("subscribed")
	if ack.Topic != "day:100" {
		t.Errorf("ack topic = %q", ack.Topic)
	}
	c.expect(MessageTypeLeaderboardUpdate)
	waitFor(t, func() bool { return hub.GetSubscriberCount("day:100") == 1 })

	hub.OnScoreRecorded(context.Background(), domain.ScoreRecorded{Player: alice, Score: 8, Day: 100})
	ev := c.expect(MessageTypeScoreRecorded)
	if ev.Topic != "day:100" {
		t.Errorf("event topic = %q", ev.Topic)
	}
	update := c.expect(MessageTypeLeaderboardUpdate)
	data, _ := json.Marshal(update.Data)
	var snap LeaderboardUpdate
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].Score != 100 {
		t.Errorf("snapshot = %+v", snap)
	}

	// Other days are not delivered.
	hub.OnScoreRecorded(context.Background(), domain.ScoreRecorded{Player: alice, Score: 8, Day: 101})
	hub.OnChampionMinted(context.Background(), domain.DailyChampionMinted{Winner: alice, TokenID: 1, Day: 99})
	c.expect(MessageTypeChampionMinted)
}

func TestHub_RejectsUnknownTopic(t *testing.T) {
	_, server := newTestServer(t, nil)
	c := dial(t, server)

	c.send(ClientMessage{Type: MessageTypeSubscribe, Topic: "weekly"})
	c.expect(MessageTypeError)

	c.send(ClientMessage{Type: MessageTypePing})
	c.expect(MessageTypePong)
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, server := newTestServer(t, nil)
	c := dial(t, server)
	c.send(ClientMessage{Type: MessageTypeSubscribe, Topic: TopicLifetime})
	c.expect("subscribed")
	waitFor(t, func() bool { return hub.GetTotalConnections() == 1 })

	c.conn.Close()
	waitFor(t, func() bool { return hub.GetTotalConnections() == 0 })
	if hub.GetSubscriberCount(TopicLifetime) != 0 {
		t.Error("subscription should be dropped with the client")
	}
}

func TestClient_SubscribeSeveralTopicsAndBadInput(t *testing.T) {
	hub, server := newTestServer(t, nil)
	c := dial(t, server)

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	c.expect(MessageTypeError)

	c.send(ClientMessage{Type: MessageTypeSubscribe, Topic: TopicLifetime, Topics: []string{DayTopic(7), "day:x"}})
	if ack := c.expect("subscribed"); ack.Topic != TopicLifetime {
		t.Errorf("first ack topic = %q", ack.Topic)
	}
	if ack := c.expect("subscribed"); ack.Topic != "day:7" {
		t.Errorf("second ack topic = %q", ack.Topic)
	}
	if e := c.expect(MessageTypeError); e.Topic != "day:x" {
		t.Errorf("error topic = %q", e.Topic)
	}
	waitFor(t, func() bool {
		return hub.GetSubscriberCount(TopicLifetime) == 1 && hub.GetSubscriberCount("day:7") == 1
	})

	c.send(ClientMessage{Type: MessageTypeUnsubscribe, Topics: []string{"day:7"}})
	c.expect("unsubscribed")
	waitFor(t, func() bool { return hub.GetSubscriberCount("day:7") == 0 })
}
