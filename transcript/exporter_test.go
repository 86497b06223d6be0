package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversation() []core.Event {
	sess := testutil.NewSessionBuilder("room-1").
		Turn("what is your name", "I am MindBot.").
		Turn("tell me a joke", "Why did the robot cross the road?").
		Build()
	return sess.GetConversationHistory()
}

func TestHistoryExporterPreservesOrder(t *testing.T) {
	exp := NewHistoryExporter()

	data, err := exp.Export(conversation())
	require.NoError(t, err)

	var doc HistoryDocument
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Len(t, doc.Items, 4)
	assert.Equal(t, "user", doc.Items[0].Role)
	assert.Equal(t, "what is your name", doc.Items[0].Text)
	assert.Equal(t, "assistant", doc.Items[1].Role)
	assert.Equal(t, "I am MindBot.", doc.Items[1].Text)
	assert.Equal(t, "tell me a joke", doc.Items[2].Text)
	assert.Equal(t, "Why did the robot cross the road?", doc.Items[3].Text)
}

func TestHistoryExporterEmptyHistory(t *testing.T) {
	data, err := NewHistoryExporter().Export(nil)
	require.NoError(t, err)

	var doc HistoryDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Empty(t, doc.Items)
}

func decodeAlpaca(t *testing.T, data []byte) []AlpacaRecord {
	t.Helper()

	var records []AlpacaRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var r AlpacaRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, sc.Err())

	return records
}

func TestAlpacaExporterPairsTurns(t *testing.T) {
	data, err := NewAlpacaExporter().Export(conversation())
	require.NoError(t, err)

	records := decodeAlpaca(t, data)
	require.Len(t, records, 2)

	assert.Equal(t, "what is your name", records[0].Instruction)
	assert.Equal(t, "", records[0].Input)
	assert.Equal(t, "I am MindBot.", records[0].Output)

	assert.Equal(t, "tell me a joke", records[1].Instruction)
	assert.Equal(t, "", records[1].Input)
	assert.Equal(t, "Why did the robot cross the road?", records[1].Output)
}

func TestAlpacaExporterDropsTrailingUserTurn(t *testing.T) {
	history := append(conversation(),
		testutil.NewEventBuilder().Author("user").UserText("one more thing").Build())

	data, err := NewAlpacaExporter().Export(history)
	require.NoError(t, err)

	records := decodeAlpaca(t, data)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.NotEqual(t, "one more thing", r.Instruction)
	}
}

func TestAlpacaExporterSkipsGreetingAndToolEvents(t *testing.T) {
	history := []core.Event{
		// Greeting has no preceding user utterance.
		testutil.NewEventBuilder().AssistantText("Hey there, I am MindBot!").Build(),
		testutil.NewEventBuilder().Author("user").UserText("what's the weather").Build(),
		testutil.NewEventBuilder().FunctionCall("lookup_weather", `{"location":"Berlin"}`).Build(),
		testutil.NewEventBuilder().FunctionResponse("call-1", "lookup_weather", "sunny", nil).Build(),
		testutil.NewEventBuilder().AssistantText("It's sunny in Berlin.").Build(),
	}

	data, err := NewAlpacaExporter().Export(history)
	require.NoError(t, err)

	records := decodeAlpaca(t, data)
	require.Len(t, records, 1)
	assert.Equal(t, "what's the weather", records[0].Instruction)
	assert.Equal(t, "It's sunny in Berlin.", records[0].Output)
}

func TestAlpacaExporterEmptyHistory(t *testing.T) {
	data, err := NewAlpacaExporter().Export(nil)
	require.NoError(t, err)
	assert.Empty(t, decodeAlpaca(t, data))
}
