// Package eventhandler содержит обработчики доменных событий.
// Обработчики подписываются на шину событий и выполняют побочные эффекты:
// журналирование, статистику, вывод в консоль администратора.
package eventhandler

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STANDING CHANGED HANDLER
// Фиксирует переходы между академическими статусами: пишет их в журнал
// и ведёт счётчики переходов по направлениям.
// ═══════════════════════════════════════════════════════════════════════════

// StandingStats - счётчики переходов, накопленные обработчиком.
type StandingStats struct {
	// Promotions - переходы на более высокий статус.
	Promotions int `json:"promotions"`

	// Demotions - переходы на более низкий статус.
	Demotions int `json:"demotions"`

	// ByTarget - число переходов в каждый статус.
	ByTarget map[string]int `json:"by_target"`
}

// OnStandingChangedHandler обрабатывает shared.StandingChangedEvent.
type OnStandingChangedHandler struct {
	log *logger.Logger

	mu    sync.Mutex
	stats StandingStats
}

// NewOnStandingChangedHandler создаёт новый обработчик.
func NewOnStandingChangedHandler(log *logger.Logger) *OnStandingChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnStandingChangedHandler{
		log:   log.With(logger.Component("on_standing_changed")),
		stats: StandingStats{ByTarget: make(map[string]int)},
	}
}

// Handle реализует shared.EventHandler. События других типов игнорируются.
func (h *OnStandingChangedHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventStandingChanged {
		return nil
	}

	from, to, err := standingLabels(event)
	if err != nil {
		return fmt.Errorf("on_standing_changed: %w", err)
	}

	h.mu.Lock()
	if rank(to) > rank(from) {
		h.stats.Promotions++
	} else {
		h.stats.Demotions++
	}
	h.stats.ByTarget[to]++
	h.mu.Unlock()

	h.log.Info("standing changed",
		logger.String("aggregate_id", event.AggregateID()),
		logger.String("from", from),
		logger.Standing(to))
	return nil
}

// Stats возвращает копию накопленных счётчиков.
func (h *OnStandingChangedHandler) Stats() StandingStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := StandingStats{
		Promotions: h.stats.Promotions,
		Demotions:  h.stats.Demotions,
		ByTarget:   make(map[string]int, len(h.stats.ByTarget)),
	}
	for k, v := range h.stats.ByTarget {
		out.ByTarget[k] = v
	}
	return out
}

// standingLabels достаёт исходный и целевой статус как из локального
// события, так и из события, пришедшего через Redis.
func standingLabels(event shared.Event) (from, to string, err error) {
	if e, ok := event.(shared.StandingChangedEvent); ok {
		return e.FromStanding, e.ToStanding, nil
	}
	p := event.Payload()
	from, _ = p["from_standing"].(string)
	to, _ = p["to_standing"].(string)
	if from == "" || to == "" {
		return "", "", fmt.Errorf("event %s has no standing labels", event.AggregateID())
	}
	return from, to, nil
}

// rank упорядочивает названия статусов; неизвестные - ниже всех.
func rank(label string) int {
	switch label {
	case "Suspended":
		return 0
	case "Probation":
		return 1
	case "Regular":
		return 2
	case "Honours":
		return 3
	default:
		return -1
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// EVENT PRINTER
// Печатает каждое событие одной строкой JSON - для команды `registrar events`.
// ═══════════════════════════════════════════════════════════════════════════

// EventPrinter пишет события в w.
type EventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEventPrinter создаёт новый EventPrinter.
func NewEventPrinter(w io.Writer) *EventPrinter {
	return &EventPrinter{w: w}
}

type printedEvent struct {
	Type        shared.EventType `json:"type"`
	AggregateID string           `json:"aggregate_id"`
	OccurredAt  string           `json:"occurred_at"`
	Payload     map[string]any   `json:"payload"`
}

// Handle реализует shared.EventHandler.
func (p *EventPrinter) Handle(event shared.Event) error {
	line, err := json.Marshal(printedEvent{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt().Format(time.RFC3339Nano),
		Payload:     event.Payload(),
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = fmt.Fprintln(p.w, string(line))
	return err
}
