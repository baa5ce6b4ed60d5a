package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/domain"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	catchupTimeout = 2 * time.Second
	stopTimeout    = 10 * time.Second
)

// Group identifies which update stream a subscriber receives.
type Group string

const (
	GroupLocation Group = "location"
	GroupComment  Group = "comment"
)

// subscriber is one open connection plus per-connection bookkeeping.
// lastSentTime holds the time string of the last location update delivered
// to this connection (location group only).
type subscriber struct {
	writer       *clientWriter
	lastSentTime string
}

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type subscribeCmd struct {
	baseBroadcasterCmd
	group        Group
	connection   *websocket.Conn
	errorChannel chan error
}

type unsubscribeCmd struct {
	baseBroadcasterCmd
	connection *websocket.Conn
}

type publishLocationCmd struct {
	baseBroadcasterCmd
	sample domain.LocationSample
}

type publishCommentCmd struct {
	baseBroadcasterCmd
	comment domain.Comment
}

type clientCountCmd struct {
	baseBroadcasterCmd
	group        Group
	replyChannel chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster owns the subscriber sets for both groups and fans serialized
// updates out to every open connection. All state is mutated by the single
// run goroutine; callers talk to it through the command channel.
type Broadcaster struct {
	cmdCh          chan broadcasterCmd
	clock          clockwork.Clock
	locations      map[*websocket.Conn]*subscriber
	comments       map[*websocket.Conn]*clientWriter
	locationStore  domain.LocationStore
	commentStore   domain.CommentStore
	commentCatchup int
	maxPerGroup    int
	done           chan struct{}
}

// New creates a broadcaster. locationStore and commentStore supply catch-up
// state for new subscribers; commentCatchup bounds the comment catch-up burst.
func New(locationStore domain.LocationStore, commentStore domain.CommentStore, commentCatchup, maxPerGroup int, clock clockwork.Clock) *Broadcaster {
	b := &Broadcaster{
		cmdCh:          make(chan broadcasterCmd, 256),
		clock:          clock,
		locations:      make(map[*websocket.Conn]*subscriber),
		comments:       make(map[*websocket.Conn]*clientWriter),
		locationStore:  locationStore,
		commentStore:   commentStore,
		commentCatchup: commentCatchup,
		maxPerGroup:    maxPerGroup,
		done:           make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe adds a connection to a group and sends it catch-up state.
// Returns an error if the group is full or the broadcaster is stuck.
func (b *Broadcaster) Subscribe(group Group, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	b.cmdCh <- subscribeCmd{group: group, connection: conn, errorChannel: errCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("subscribe command timed out after %v", commandTimeout)
	}
}

// Unsubscribe removes a connection from whichever group holds it.
// Removing an unknown connection is a no-op.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.cmdCh <- unsubscribeCmd{connection: conn}
}

// PublishLocation fans a location sample out to the location group.
func (b *Broadcaster) PublishLocation(sample domain.LocationSample) {
	b.cmdCh <- publishLocationCmd{sample: sample}
}

// PublishComment fans a comment out to the comment group.
func (b *Broadcaster) PublishComment(comment domain.Comment) {
	b.cmdCh <- publishCommentCmd{comment: comment}
}

// ClientCount returns the number of open connections in a group.
// Returns -1 if the command times out.
func (b *Broadcaster) ClientCount(group Group) int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{group: group, replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the broadcaster, closing all client connections.
// Blocks until the run goroutine has exited or the stop timeout is reached.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}

	timer := b.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Broadcaster stop timeout exceeded, forcing exit", "timeout", stopTimeout)
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case subscribeCmd:
			b.handleSubscribe(c)
		case unsubscribeCmd:
			b.handleUnsubscribe(c.connection)
		case publishLocationCmd:
			b.handlePublishLocation(c.sample)
		case publishCommentCmd:
			b.handlePublishComment(c.comment)
		case clientCountCmd:
			switch c.group {
			case GroupLocation:
				c.replyChannel <- len(b.locations)
			case GroupComment:
				c.replyChannel <- len(b.comments)
			default:
				c.replyChannel <- 0
			}
		case stopCmd:
			b.handleStop()
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (b *Broadcaster) handleSubscribe(c subscribeCmd) {
	switch c.group {
	case GroupLocation:
		if len(b.locations) >= b.maxPerGroup {
			b.rejectFull(c)
			return
		}
		cw := newClientWriter(c.connection, b.clock)
		sub := &subscriber{writer: cw}
		b.locations[c.connection] = sub
		metrics.ConnectedClients.WithLabelValues(string(GroupLocation)).Set(float64(len(b.locations)))
		c.errorChannel <- nil

		b.sendLocationCatchup(sub)
		b.broadcastViewerCount()
		slog.Debug("Client subscribed", "group", c.group, "total_clients", len(b.locations))

	case GroupComment:
		if len(b.comments) >= b.maxPerGroup {
			b.rejectFull(c)
			return
		}
		cw := newClientWriter(c.connection, b.clock)
		b.comments[c.connection] = cw
		metrics.ConnectedClients.WithLabelValues(string(GroupComment)).Set(float64(len(b.comments)))
		c.errorChannel <- nil

		b.sendCommentCatchup(cw)
		slog.Debug("Client subscribed", "group", c.group, "total_clients", len(b.comments))

	default:
		c.errorChannel <- fmt.Errorf("unknown subscriber group %q", c.group)
	}
}

func (b *Broadcaster) rejectFull(c subscribeCmd) {
	slog.Warn("Rejecting client: group full", "group", c.group, "max_clients", b.maxPerGroup)
	_ = c.connection.Close()
	c.errorChannel <- fmt.Errorf("max clients per group (%d) reached", b.maxPerGroup)
}

// sendLocationCatchup delivers the single most recent sample, if any exists.
// A catch-up failure only logs; the subscriber still receives live updates.
func (b *Broadcaster) sendLocationCatchup(sub *subscriber) {
	ctx, cancel := context.WithTimeout(context.Background(), catchupTimeout)
	defer cancel()

	sample, err := b.locationStore.Latest(ctx)
	if err != nil {
		slog.Error("Failed to fetch latest location for catch-up", "error", err)
		return
	}
	if sample == nil {
		return
	}

	update := domain.NewLocationUpdate(*sample)
	data, err := json.Marshal(update)
	if err != nil {
		slog.Error("Failed to marshal catch-up location", "error", err)
		return
	}

	if sub.writer.trySend(data) {
		sub.lastSentTime = update.Time
		metrics.MessagesSentTotal.WithLabelValues(string(GroupLocation)).Inc()
	}
}

// sendCommentCatchup delivers up to commentCatchup recent comments,
// most recent first, each as an individual message.
func (b *Broadcaster) sendCommentCatchup(cw *clientWriter) {
	ctx, cancel := context.WithTimeout(context.Background(), catchupTimeout)
	defer cancel()

	comments, err := b.commentStore.Recent(ctx, b.commentCatchup)
	if err != nil {
		slog.Error("Failed to fetch recent comments for catch-up", "error", err)
		return
	}

	for _, comment := range comments {
		data, err := json.Marshal(comment)
		if err != nil {
			slog.Error("Failed to marshal catch-up comment", "comment_id", comment.ID, "error", err)
			continue
		}
		if cw.trySend(data) {
			metrics.MessagesSentTotal.WithLabelValues(string(GroupComment)).Inc()
		}
	}
}

func (b *Broadcaster) handleUnsubscribe(conn *websocket.Conn) {
	if sub, exists := b.locations[conn]; exists {
		sub.writer.stop()
		delete(b.locations, conn)
		metrics.ConnectedClients.WithLabelValues(string(GroupLocation)).Set(float64(len(b.locations)))
		slog.Debug("Client unsubscribed", "group", GroupLocation, "remaining_clients", len(b.locations))
		b.broadcastViewerCount()
		return
	}

	if cw, exists := b.comments[conn]; exists {
		cw.stop()
		delete(b.comments, conn)
		metrics.ConnectedClients.WithLabelValues(string(GroupComment)).Set(float64(len(b.comments)))
		slog.Debug("Client unsubscribed", "group", GroupComment, "remaining_clients", len(b.comments))
	}
}

func (b *Broadcaster) handlePublishLocation(sample domain.LocationSample) {
	start := b.clock.Now()

	update := domain.NewLocationUpdate(sample)
	data, err := json.Marshal(update)
	if err != nil {
		slog.Error("Failed to marshal location update", "error", err)
		return
	}

	var slow []*websocket.Conn
	for conn, sub := range b.locations {
		if sub.writer.trySend(data) {
			sub.lastSentTime = update.Time
			metrics.MessagesSentTotal.WithLabelValues(string(GroupLocation)).Inc()
		} else {
			slow = append(slow, conn)
		}
	}
	b.pruneSlow(slow)

	metrics.BroadcastDuration.Observe(b.clock.Since(start).Seconds())
}

func (b *Broadcaster) handlePublishComment(comment domain.Comment) {
	start := b.clock.Now()

	data, err := json.Marshal(comment)
	if err != nil {
		slog.Error("Failed to marshal comment", "comment_id", comment.ID, "error", err)
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range b.comments {
		if cw.trySend(data) {
			metrics.MessagesSentTotal.WithLabelValues(string(GroupComment)).Inc()
		} else {
			slow = append(slow, conn)
		}
	}
	b.pruneSlow(slow)

	metrics.BroadcastDuration.Observe(b.clock.Since(start).Seconds())
}

// broadcastViewerCount tells every location subscriber how many connections
// the location group currently holds. Derived state, never persisted.
func (b *Broadcaster) broadcastViewerCount() {
	data, err := json.Marshal(domain.ViewerCount{Viewers: len(b.locations)})
	if err != nil {
		slog.Error("Failed to marshal viewer count", "error", err)
		return
	}

	// No pruning here: a full buffer now is handled by the next location
	// publish, which keeps unsubscribe from re-entering this path.
	for _, sub := range b.locations {
		_ = sub.writer.trySend(data)
	}
}

// pruneSlow removes subscribers whose send buffer was full. Membership is
// self-healing: a dead or slow connection is only ever discovered on a
// failed send, never by active probing from the broadcast path.
func (b *Broadcaster) pruneSlow(slow []*websocket.Conn) {
	for _, conn := range slow {
		slog.Warn("Disconnecting slow client")
		metrics.SlowClientsEvicted.Inc()
		b.handleUnsubscribe(conn)
	}
}

func (b *Broadcaster) handleStop() {
	total := len(b.locations) + len(b.comments)
	slog.Info("Broadcaster shutting down", "total_clients", total)

	for conn, sub := range b.locations {
		sub.writer.stopGraceful("Server shutting down")
		delete(b.locations, conn)
	}
	for conn, cw := range b.comments {
		cw.stopGraceful("Server shutting down")
		delete(b.comments, conn)
	}
	metrics.ConnectedClients.WithLabelValues(string(GroupLocation)).Set(0)
	metrics.ConnectedClients.WithLabelValues(string(GroupComment)).Set(0)

	slog.Info("Broadcaster shutdown complete", "disconnected_clients", total)
}
