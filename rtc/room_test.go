package rtc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer upgrades one connection and replays a scripted sequence after
// receiving the join message.
func fakeServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// First message must be the join envelope.
		var join signalMessage
		if err := conn.ReadJSON(&join); err != nil {
			t.Errorf("read join: %v", err)
			return
		}
		if join.Type != "join" {
			t.Errorf("expected join, got %q", join.Type)
			return
		}

		script(conn)
	}))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestRoomWaitForParticipant(t *testing.T) {
	ts := fakeServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(signalMessage{
			Type:        "participant_joined",
			Participant: &Participant{Identity: "caller-1", Name: "Caller"},
		})
		// Keep the connection open until the client disconnects.
		_, _, _ = conn.ReadMessage()
	})
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := Connect(ctx, ConnectInfo{URL: wsURL(ts), RoomName: "room-1", Identity: "agent"})
	require.NoError(t, err)
	defer room.Disconnect()

	p, err := room.WaitForParticipant(ctx)
	require.NoError(t, err)
	assert.Equal(t, "caller-1", p.Identity)

	assert.Len(t, room.RemoteParticipants(), 1)
	assert.Equal(t, "room-1", room.Name())
}

func TestRoomReceivesAudioFrames(t *testing.T) {
	pcm := make([]byte, 640) // 20ms at 16kHz mono

	ts := fakeServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, pcm)
		_, _, _ = conn.ReadMessage()
	})
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := Connect(ctx, ConnectInfo{URL: wsURL(ts), RoomName: "room-1", Identity: "agent"})
	require.NoError(t, err)
	defer room.Disconnect()

	for ev := range room.Events() {
		if ev.Type != EventAudioFrame {
			continue
		}
		require.NotNil(t, ev.Frame)
		assert.Equal(t, 16000, ev.Frame.SampleRate)
		assert.Equal(t, 320, ev.Frame.SamplesPerChannel)
		return
	}
	t.Fatal("no audio frame received")
}

func TestRoomPublishData(t *testing.T) {
	received := make(chan signalMessage, 1)

	ts := fakeServer(t, func(conn *websocket.Conn) {
		var msg signalMessage
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
	})
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := Connect(ctx, ConnectInfo{URL: wsURL(ts), RoomName: "room-1", Identity: "agent"})
	require.NoError(t, err)
	defer room.Disconnect()

	payload, _ := json.Marshal(map[string]string{"kind": "transcript"})
	require.NoError(t, room.PublishData(payload))

	select {
	case msg := <-received:
		assert.Equal(t, "data", msg.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive data message")
	}
}

func TestRoomDisconnectDeliversFinalEvent(t *testing.T) {
	ts := fakeServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := Connect(ctx, ConnectInfo{URL: wsURL(ts), RoomName: "room-1", Identity: "agent"})
	require.NoError(t, err)

	require.NoError(t, room.Disconnect())
	require.NoError(t, room.Disconnect()) // idempotent

	var last Event
	for ev := range room.Events() {
		last = ev
	}
	assert.Equal(t, EventDisconnected, last.Type)
}

func TestRoomReadLoopFinishesWithAbandonedConsumer(t *testing.T) {
	ts := fakeServer(t, func(conn *websocket.Conn) {
		// More frames than the event buffer holds, then the server hangs up.
		for i := 0; i < 8; i++ {
			_ = conn.WriteMessage(websocket.BinaryMessage, make([]byte, 320))
		}
	})
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := Connect(ctx, ConnectInfo{URL: wsURL(ts), RoomName: "room-1", Identity: "agent"},
		func(o *Options) { o.EventBufferSize = 1 })
	require.NoError(t, err)
	defer room.Disconnect()

	// Nobody consumes while the buffer fills and the connection drops. The
	// read loop must still close the channel instead of blocking on the
	// final disconnect event.
	time.Sleep(200 * time.Millisecond)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-room.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel never closed, read loop is stuck")
		}
	}
}
