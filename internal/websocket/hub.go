package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/metrics"
)

// Message types
const (
	MessageTypeScoreRecorded     = domain.EventScoreRecorded
	MessageTypeWinnerDeclared    = domain.EventDailyWinnerDeclared
	MessageTypeChampionMinted    = domain.EventDailyChampionMinted
	MessageTypeLeaderboardUpdate = "leaderboard_update"
	MessageTypeSubscribe         = "subscribe"
	MessageTypeUnsubscribe       = "unsubscribe"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
)

// TopicLifetime carries lifetime ranking changes. Daily rankings use
// DayTopic.
const TopicLifetime = "lifetime"

const dayTopicPrefix = "day:"

// DayTopic names the topic for one day's ranking
func DayTopic(day uint64) string {
	return dayTopicPrefix + strconv.FormatUint(day, 10)
}

// ValidTopic reports whether clients may subscribe to topic
func ValidTopic(topic string) bool {
	if topic == TopicLifetime {
		return true
	}
	day, ok := strings.CutPrefix(topic, dayTopicPrefix)
	if !ok {
		return false
	}
	_, err := strconv.ParseUint(day, 10, 64)
	return err == nil
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// LeaderboardUpdate is a ranking snapshot pushed after a score lands
type LeaderboardUpdate struct {
	Topic        string                    `json:"topic"`
	Entries      []domain.LeaderboardEntry `json:"entries"`
	TotalPlayers int                       `json:"total_players,omitempty"`
}

// RankingReader provides the snapshots pushed to subscribers
type RankingReader interface {
	TopPlayers(limit int) []domain.LeaderboardEntry
	DailyTopPlayers(day uint64, limit int) []domain.LeaderboardEntry
	TotalPlayers() int
}

// Hub maintains the set of active clients and broadcasts ledger events
type Hub struct {
	// Subscribed clients by topic
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu sync.RWMutex

	rankings     RankingReader
	snapshotSize int

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

// NewHub creates a new Hub. When rankings is non-nil, every score event is
// followed by a snapshot of the top snapshotSize players of each topic.
func NewHub(rankings RankingReader, snapshotSize int, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:      make(map[string]map[*Client]bool),
		allClients:   make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *Message, 256),
		subscribe:    make(chan *subscriptionRequest, 64),
		unsubscribe:  make(chan *subscriptionRequest, 64),
		rankings:     rankings,
		snapshotSize: snapshotSize,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			metrics.WebsocketClients.Set(float64(len(h.allClients)))
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for topic, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, topic)
						}
					}
				}
				close(client.send)
				metrics.WebsocketClients.Set(float64(len(h.allClients)))
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if !h.allClients[req.client] {
				// already unregistered; its send channel is closed
				h.mu.Unlock()
				continue
			}
			if _, ok := h.clients[req.topic]; !ok {
				h.clients[req.topic] = make(map[*Client]bool)
			}
			h.clients[req.topic][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "topic", req.topic)
			h.sendSnapshot(req.client, req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.topic]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "topic", req.topic)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to the topic's subscribers, or to every
// client when the message has no topic.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	targets := h.allClients
	if message.Topic != "" {
		targets = h.clients[message.Topic]
	}
	for client := range targets {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) publish(msgType, topic string, data interface{}) {
	message := &Message{
		Type:      msgType,
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now(),
	}
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", msgType, "topic", topic)
	}
}

func (h *Hub) hasSubscribers(topic string) bool {
	return h.GetSubscriberCount(topic) > 0
}

// OnScoreRecorded pushes the event and fresh snapshots to the lifetime and
// day topics.
func (h *Hub) OnScoreRecorded(_ context.Context, ev domain.ScoreRecorded) {
	dayTopic := DayTopic(ev.Day)
	for _, topic := range []string{TopicLifetime, dayTopic} {
		if !h.hasSubscribers(topic) {
			continue
		}
		h.publish(MessageTypeScoreRecorded, topic, ev)
		if h.rankings == nil || h.snapshotSize < 1 {
			continue
		}
		h.publish(MessageTypeLeaderboardUpdate, topic, h.snapshot(topic))
	}
}

// snapshot reads the current ranking of a valid topic
func (h *Hub) snapshot(topic string) LeaderboardUpdate {
	update := LeaderboardUpdate{Topic: topic}
	if topic == TopicLifetime {
		update.Entries = h.rankings.TopPlayers(h.snapshotSize)
		update.TotalPlayers = h.rankings.TotalPlayers()
		return update
	}
	day, _ := strconv.ParseUint(strings.TrimPrefix(topic, dayTopicPrefix), 10, 64)
	update.Entries = h.rankings.DailyTopPlayers(day, h.snapshotSize)
	return update
}

// sendSnapshot gives a new subscriber the current ranking of its topic
func (h *Hub) sendSnapshot(client *Client, topic string) {
	if h.rankings == nil || h.snapshotSize < 1 {
		return
	}
	data, err := json.Marshal(&Message{
		Type:      MessageTypeLeaderboardUpdate,
		Topic:     topic,
		Data:      h.snapshot(topic),
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Error("failed to marshal snapshot", "error", err)
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// OnDailyWinnerDeclared tells everyone who won a day
func (h *Hub) OnDailyWinnerDeclared(_ context.Context, ev domain.DailyWinnerDeclared) {
	h.publish(MessageTypeWinnerDeclared, "", ev)
}

// OnChampionMinted tells everyone about a new champion token
func (h *Hub) OnChampionMinted(_ context.Context, ev domain.DailyChampionMinted) {
	h.publish(MessageTypeChampionMinted, "", ev)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a topic
func (h *Hub) Subscribe(client *Client, topic string) error {
	if !ValidTopic(topic) {
		return fmt.Errorf("unknown topic %q", topic)
	}
	h.subscribe <- &subscriptionRequest{
		client: client,
		topic:  topic,
	}
	return nil
}

// Unsubscribe removes a client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.unsubscribe <- &subscriptionRequest{
		client: client,
		topic:  topic,
	}
}

// GetSubscriberCount returns the number of subscribers of a topic
func (h *Hub) GetSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
