package calculator

import (
	"strings"

	"github.com/pumpspares/src_project/internal/model/messages"
	"github.com/pumpspares/src_project/pkg/dedup"
)

// Publisher is satisfied by *broker.Publisher.
type Publisher interface {
	PublishJSON(topic string, v any) error
	Connected() bool
}

// Emitter publishes SRCCalculatedEvent on "{prefix}/{source}". The same
// inputs repeated inside the dedup TTL are published once.
type Emitter struct {
	pub    Publisher
	seen   *dedup.Deduper
	prefix string
}

func NewEmitter(pub Publisher, seen *dedup.Deduper, prefix string) *Emitter {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "event/srcCalculated"
	}
	return &Emitter{pub: pub, seen: seen, prefix: prefix}
}

func (e *Emitter) Topic(source string) string { return e.prefix + "/" + source }

// Emit reports false without error when the event was a duplicate. A failed
// publish is not remembered, so the same inputs are retried next time.
func (e *Emitter) Emit(ev messages.SRCCalculatedEvent) (bool, error) {
	var key string
	if e.seen != nil {
		key = dedup.Key(ev.Source, ev.SH, ev.Qnp, ev.Hnp, ev.Qact, ev.Hact, ev.HasQH)
		if !e.seen.ShouldProcess(key) {
			return false, nil
		}
	}
	if err := e.pub.PublishJSON(e.Topic(ev.Source), ev); err != nil {
		if e.seen != nil {
			e.seen.Forget(key)
		}
		return false, err
	}
	return true, nil
}

func (e *Emitter) Connected() bool { return e != nil && e.pub.Connected() }
