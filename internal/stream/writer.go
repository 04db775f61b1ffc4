package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/isstrack/internal/metrics"
)

const writeTimeout = 30 * time.Second

// eventWriter writes named SSE events to one connection.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	sent int
}

func (e *eventWriter) extendDeadline() {
	if err := e.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		e.logger.Debug("could not set write deadline", "component", "stream", "error", err)
	}
}

// event sends v as a JSON payload under the given event name:
//
//	event: <name>
//	data: <json>
func (e *eventWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", name, err)
	}

	e.extendDeadline()
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("writing %s event: %w", name, err)
	}
	e.flusher.Flush()
	e.sent++
	metrics.IncStreamMessages()
	return nil
}

// keepalive sends an SSE comment line.
func (e *eventWriter) keepalive() error {
	e.extendDeadline()
	if _, err := fmt.Fprint(e.w, ":\n\n"); err != nil {
		return fmt.Errorf("writing keepalive: %w", err)
	}
	e.flusher.Flush()
	return nil
}
