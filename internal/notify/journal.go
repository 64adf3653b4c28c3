package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

// journalEvent mirrors the payload published by the journal service on the
// "journal" pub/sub channel. Only the fields needed for a human-readable
// notification are decoded.
type journalEvent struct {
	Event      string `json:"event"`
	PositionID string `json:"position_id"`
	Symbol     string `json:"symbol"`
	Kind       string `json:"kind"`
	Price      string `json:"price"`
	Quantity   string `json:"quantity"`
	Status     string `json:"status"`
	RealizedPL string `json:"realized_pl"`
}

// JournalListener consumes journal events from the signal bus and forwards
// them to a Notifier. It runs until the context is cancelled or the bus
// subscription closes.
type JournalListener struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewJournalListener creates a listener for the given bus and notifier.
func NewJournalListener(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *JournalListener {
	return &JournalListener{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "journal_listener")),
	}
}

// Run subscribes to the journal channel and dispatches notifications for each
// event until ctx is cancelled. Malformed payloads are logged and skipped.
func (l *JournalListener) Run(ctx context.Context, channel string) error {
	msgs, err := l.bus.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", channel, err)
	}

	l.logger.InfoContext(ctx, "journal listener started", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev journalEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				l.logger.WarnContext(ctx, "malformed journal event",
					slog.String("error", err.Error()),
				)
				continue
			}
			l.handle(ctx, ev)
		}
	}
}

func (l *JournalListener) handle(ctx context.Context, ev journalEvent) {
	title, message := formatJournalEvent(ev)
	if err := l.notifier.Notify(ctx, ev.Event, title, message); err != nil {
		l.logger.WarnContext(ctx, "notification failed",
			slog.String("event", ev.Event),
			slog.String("position_id", ev.PositionID),
			slog.String("error", err.Error()),
		)
	}
}

// formatJournalEvent renders an event as a title and body suitable for every
// sender. Bold markup is applied by the senders themselves.
func formatJournalEvent(ev journalEvent) (title, message string) {
	switch ev.Event {
	case "position_opened":
		title = fmt.Sprintf("Opened %s", ev.Symbol)
		message = fmt.Sprintf("%s %s @ %s", ev.Kind, ev.Quantity, ev.Price)
	case "position_closed":
		title = fmt.Sprintf("Closed %s", ev.Symbol)
		message = fmt.Sprintf("Realized P/L: %s", ev.RealizedPL)
	default:
		title = fmt.Sprintf("Journal: %s", ev.Event)
		message = fmt.Sprintf("%s %s %s @ %s", ev.Symbol, ev.Kind, ev.Quantity, ev.Price)
	}
	return title, message
}
