package transcript

import (
	"fmt"
	"time"

	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/logging"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Prefix is the leading filename component. Defaults to "transcript".
	Prefix string

	// Logger receives a line per written transcript.
	Logger logging.Logger

	// Now supplies the timestamp embedded in filenames. Overridable in tests.
	Now func() time.Time
}

// Writer persists conversation histories through a Store using the
// <prefix>_<room>_<timestamp>.<ext> filename convention. Intended to be
// called from a job shutdown callback.
type Writer struct {
	store  Store
	prefix string
	logger logging.Logger
	now    func() time.Time
}

// NewWriter creates a Writer on top of the given store.
func NewWriter(store Store, optFns ...func(o *WriterOptions)) *Writer {
	opts := WriterOptions{
		Prefix: "transcript",
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Writer{
		store:  store,
		prefix: opts.Prefix,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

// Write exports the history with the given exporter and saves it under the
// room's transcript filename. Returns the filename used.
func (w *Writer) Write(room string, history []core.Event, exp Exporter) (string, error) {
	data, err := exp.Export(history)
	if err != nil {
		return "", fmt.Errorf("export transcript: %w", err)
	}

	name := BuildFilename(w.prefix, room, w.now(), exp.Ext())

	if err := w.store.Save(room, name, data); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}

	w.logger.Info("transcript written", "room", room, "file", name, "bytes", len(data))

	return name, nil
}
