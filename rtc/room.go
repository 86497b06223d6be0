package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mindbots/voicemesh/logging"
)

// Participant identifies a remote peer in a room.
type Participant struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
}

// EventType labels room events.
type EventType string

const (
	// EventParticipantJoined signals a remote participant joined the room.
	EventParticipantJoined EventType = "participant_joined"
	// EventParticipantLeft signals a remote participant left the room.
	EventParticipantLeft EventType = "participant_left"
	// EventAudioFrame carries a received remote audio frame.
	EventAudioFrame EventType = "audio_frame"
	// EventData carries an application data message.
	EventData EventType = "data"
	// EventDisconnected signals the connection closed; it is the last event.
	EventDisconnected EventType = "disconnected"
)

// Event is a room occurrence delivered through Room.Events.
type Event struct {
	Type        EventType
	Participant Participant
	Frame       *AudioFrame
	Data        []byte
}

// signalMessage is the JSON envelope used on text frames. Audio travels as
// raw PCM on binary frames to avoid base64 overhead.
type signalMessage struct {
	Type        string          `json:"type"`
	Room        string          `json:"room,omitempty"`
	Token       string          `json:"token,omitempty"`
	Participant *Participant    `json:"participant,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// ConnectInfo describes the target room and the local identity.
type ConnectInfo struct {
	URL        string // websocket endpoint of the media server
	Token      string // access token presented on join
	RoomName   string
	Identity   string // local participant identity
	SampleRate int    // negotiated PCM sample rate, default 16000
	Channels   int    // negotiated channel count, default 1
}

// Options configure a Room connection.
type Options struct {
	Logger          logging.Logger
	EventBufferSize int
	Dialer          *websocket.Dialer
}

// Room is a client connection to one named room on the media server. A
// single reader goroutine feeds Events; writes are serialized internally so
// Publish methods are safe for concurrent use.
type Room struct {
	conn       *websocket.Conn
	info       ConnectInfo
	logger     logging.Logger
	events     chan Event
	writeMu    sync.Mutex
	mu         sync.Mutex
	remotes    map[string]Participant
	arrived    chan struct{} // closed and replaced on each join, broadcast to waiters
	closeOnce  sync.Once
	closedCh   chan struct{}
	sampleRate int
	channels   int
}

// Connect dials the media server and joins the room named in info.
func Connect(ctx context.Context, info ConnectInfo, optFns ...func(o *Options)) (*Room, error) {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		EventBufferSize: 256,
		Dialer:          websocket.DefaultDialer,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if info.SampleRate == 0 {
		info.SampleRate = 16000
	}
	if info.Channels == 0 {
		info.Channels = 1
	}

	header := http.Header{}
	if info.Token != "" {
		header.Set("Authorization", "Bearer "+info.Token)
	}

	conn, _, err := opts.Dialer.DialContext(ctx, info.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial room server %q: %w", info.URL, err)
	}

	r := &Room{
		conn:       conn,
		info:       info,
		logger:     opts.Logger,
		events:     make(chan Event, opts.EventBufferSize),
		remotes:    map[string]Participant{},
		arrived:    make(chan struct{}),
		closedCh:   make(chan struct{}),
		sampleRate: info.SampleRate,
		channels:   info.Channels,
	}

	join := signalMessage{
		Type:        "join",
		Room:        info.RoomName,
		Token:       info.Token,
		Participant: &Participant{Identity: info.Identity},
	}
	if err := r.writeJSON(join); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join room %q: %w", info.RoomName, err)
	}

	go r.readLoop()

	r.logger.Info("room connected", "room", info.RoomName, "identity", info.Identity)

	return r, nil
}

// Name returns the room name.
func (r *Room) Name() string { return r.info.RoomName }

// LocalIdentity returns the identity the local participant joined with.
func (r *Room) LocalIdentity() string { return r.info.Identity }

// Events returns the room event stream. The channel is closed after
// EventDisconnected is delivered.
func (r *Room) Events() <-chan Event { return r.events }

// RemoteParticipants returns a snapshot of the currently known remote participants.
func (r *Room) RemoteParticipants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Participant, 0, len(r.remotes))
	for _, p := range r.remotes {
		out = append(out, p)
	}
	return out
}

// WaitForParticipant blocks until a remote participant is present in the
// room, the room disconnects, or the context is cancelled.
func (r *Room) WaitForParticipant(ctx context.Context) (Participant, error) {
	for {
		r.mu.Lock()
		for _, p := range r.remotes {
			r.mu.Unlock()
			return p, nil
		}
		arrived := r.arrived
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return Participant{}, ctx.Err()
		case <-r.closedCh:
			return Participant{}, fmt.Errorf("room %q disconnected", r.info.RoomName)
		case <-arrived:
		}
	}
}

// PublishAudio sends a local PCM frame to the room.
func (r *Room) PublishAudio(frame AudioFrame) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
		return fmt.Errorf("publish audio: %w", err)
	}
	return nil
}

// PublishData sends an application data message to the room.
func (r *Room) PublishData(data []byte) error {
	msg := signalMessage{Type: "data", Payload: json.RawMessage(data)}
	if err := r.writeJSON(msg); err != nil {
		return fmt.Errorf("publish data: %w", err)
	}
	return nil
}

// Disconnect closes the connection. Safe to call multiple times.
func (r *Room) Disconnect() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closedCh)
		_ = r.writeJSON(signalMessage{Type: "leave", Room: r.info.RoomName})
		err = r.conn.Close()
	})
	return err
}

func (r *Room) writeJSON(msg signalMessage) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(msg)
}

// readLoop is the single reader: binary frames become audio events, text
// frames are signaling. It terminates on any read error, emitting
// EventDisconnected and closing the event channel. The disconnect event uses
// the same non-blocking send as every other event: a consumer that abandoned
// a full channel still observes the close, and the loop never leaks.
func (r *Room) readLoop() {
	defer func() {
		r.emit(Event{Type: EventDisconnected})
		close(r.events)
	}()

	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.closedCh:
			default:
				r.logger.Warn("room read failed", "room", r.info.RoomName, "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			frame := AudioFrame{
				Data:              data,
				SampleRate:        r.sampleRate,
				NumChannels:       r.channels,
				SamplesPerChannel: len(data) / (2 * r.channels),
			}
			r.emit(Event{Type: EventAudioFrame, Frame: &frame})
		case websocket.TextMessage:
			var msg signalMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				r.logger.Warn("room signal decode failed", "error", err)
				continue
			}
			r.handleSignal(msg)
		}
	}
}

func (r *Room) handleSignal(msg signalMessage) {
	switch msg.Type {
	case "participant_joined":
		if msg.Participant == nil {
			return
		}
		r.mu.Lock()
		r.remotes[msg.Participant.Identity] = *msg.Participant
		close(r.arrived)
		r.arrived = make(chan struct{})
		r.mu.Unlock()
		r.emit(Event{Type: EventParticipantJoined, Participant: *msg.Participant})
	case "participant_left":
		if msg.Participant == nil {
			return
		}
		r.mu.Lock()
		delete(r.remotes, msg.Participant.Identity)
		r.mu.Unlock()
		r.emit(Event{Type: EventParticipantLeft, Participant: *msg.Participant})
	case "data":
		r.emit(Event{Type: EventData, Data: []byte(msg.Payload)})
	default:
		r.logger.Debug("room signal ignored", "type", msg.Type)
	}
}

// emit drops events when the consumer falls behind rather than blocking the
// read loop; audio is lossy by nature and signaling is low-rate.
func (r *Room) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("room event dropped", "type", ev.Type)
	}
}
