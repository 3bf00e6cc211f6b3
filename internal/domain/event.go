package domain

import "strings"

// Event — имя события жизненного цикла flow, например "ingest.initial_sync.end".
//
// Событие неизменяемо: однажды записанное, оно остаётся до конца run.
type Event string

// Стадии и события, которые платформа сообщает через milestones.
const (
	StageInitialSync = "initial_sync"
	StageCDC         = "cdc"

	EventStart = "start"
	EventEnd   = "end"
)

// NewEvent собирает событие flow: NewEvent("a", "end") → "a.end",
// NewEvent("a", "cdc", "start") → "a.cdc.start".
func NewEvent(flow string, parts ...string) Event {
	return Event(strings.Join(append([]string{flow}, parts...), "."))
}

// String реализует fmt.Stringer.
func (e Event) String() string {
	return string(e)
}

// Flow возвращает имя flow — первый токен события.
func (e Event) Flow() string {
	name, _, _ := strings.Cut(string(e), ".")
	return name
}

// Kind возвращает событие без имени flow ("initial_sync.end").
// Используется как метка метрик, чтобы не плодить кардинальность.
func (e Event) Kind() string {
	_, kind, _ := strings.Cut(string(e), ".")
	return kind
}

// Descriptor — разобранный дескриптор зависимости.
type Descriptor struct {
	Flow   string
	Stage  string // пусто для формы "name.event"
	Action string // start или end
}

// ParseDescriptor разбирает дескриптор "name.event" или "name.stage.event".
// Возвращает false, если токенов не 2–3 или какой-то из них пустой.
func ParseDescriptor(s string) (Descriptor, bool) {
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return Descriptor{}, false
		}
	}

	switch len(parts) {
	case 2:
		return Descriptor{Flow: parts[0], Action: parts[1]}, true
	case 3:
		return Descriptor{Flow: parts[0], Stage: parts[1], Action: parts[2]}, true
	default:
		return Descriptor{}, false
	}
}

// IsKnown проверяет, что стадия и событие из известного набора.
// Неизвестный дескриптор корректен синтаксически, но никогда не произойдёт.
func (d Descriptor) IsKnown() bool {
	if d.Action != EventStart && d.Action != EventEnd {
		return false
	}
	switch d.Stage {
	case "", StageInitialSync, StageCDC:
		return true
	default:
		return false
	}
}

// Event возвращает событие, которое требуется дескриптором.
func (d Descriptor) Event() Event {
	if d.Stage == "" {
		return NewEvent(d.Flow, d.Action)
	}
	return NewEvent(d.Flow, d.Stage, d.Action)
}
