package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindbots/voicemesh/core"
)

// Exporter renders a conversation history into a serialized transcript.
// Implementations must preserve the order of the input events and must not
// mutate them.
type Exporter interface {
	// Export serializes the history. The history is expected to be the
	// filtered conversation view (user/assistant/tool roles, no partials).
	Export(history []core.Event) ([]byte, error)

	// Ext returns the file extension (without dot) for the format.
	Ext() string
}

// HistoryItem is one entry of the full-history export.
type HistoryItem struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Text        string    `json:"text"`
	Interrupted bool      `json:"interrupted,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryDocument is the root object of the full-history export.
type HistoryDocument struct {
	Items []HistoryItem `json:"items"`
}

// HistoryExporter serializes the complete conversation as a single indented
// JSON document, one item per event, in original order.
type HistoryExporter struct{}

// NewHistoryExporter returns a full-history JSON exporter.
func NewHistoryExporter() *HistoryExporter { return &HistoryExporter{} }

// Ext returns "json".
func (e *HistoryExporter) Ext() string { return "json" }

// Export implements Exporter.
func (e *HistoryExporter) Export(history []core.Event) ([]byte, error) {
	doc := HistoryDocument{Items: make([]HistoryItem, 0, len(history))}

	for _, ev := range history {
		if ev.Content == nil {
			continue
		}

		doc.Items = append(doc.Items, HistoryItem{
			ID:          ev.ID,
			Role:        ev.Content.Role,
			Text:        ev.Text(),
			Interrupted: ev.IsInterrupted(),
			CreatedAt:   ev.Timestamp,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}

	return data, nil
}

// AlpacaRecord is one instruction-tuning pair of the JSONL export.
type AlpacaRecord struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// AlpacaExporter serializes the conversation as JSON Lines, one record per
// user utterance followed by an assistant reply. The Input field is always
// empty; a trailing user utterance without a reply is dropped. Tool events
// and assistant turns without a preceding user utterance (greetings) produce
// no records.
type AlpacaExporter struct{}

// NewAlpacaExporter returns an Alpaca style JSONL exporter.
func NewAlpacaExporter() *AlpacaExporter { return &AlpacaExporter{} }

// Ext returns "jsonl".
func (e *AlpacaExporter) Ext() string { return "jsonl" }

// Export implements Exporter.
func (e *AlpacaExporter) Export(history []core.Event) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)

	pending := ""
	havePending := false

	for _, ev := range history {
		if ev.Content == nil {
			continue
		}

		switch ev.Content.Role {
		case "user":
			if text := ev.Text(); text != "" {
				pending = text
				havePending = true
			}
		case "assistant":
			text := ev.Text()
			if !havePending || text == "" {
				// Greetings and pure tool-call turns have no instruction to pair with.
				continue
			}

			if err := enc.Encode(AlpacaRecord{Instruction: pending, Input: "", Output: text}); err != nil {
				return nil, fmt.Errorf("encode alpaca record: %w", err)
			}

			pending = ""
			havePending = false
		}
	}

	return buf.Bytes(), nil
}
