// Package bus implements synchronous, typed publish/subscribe channels.
//
// Handlers for a topic run on the publishing goroutine, in subscription
// order, before Publish returns. The bus is not safe for concurrent use;
// the host loop owns it.
package bus

// Topic names a channel carrying payloads of type T.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic. Two topics with the same name and payload type
// address the same channel.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the topic name.
func (t Topic[T]) Name() string { return t.name }

// Subscription identifies one registered handler. The zero value is a valid
// subscription that refers to nothing.
type Subscription struct {
	topic string
	id    uint64
}

// Topic returns the name of the topic the subscription belongs to.
func (s Subscription) Topic() string { return s.topic }

type entry struct {
	id      uint64
	call    func(any)
	removed bool
}

// Bus holds handler lists keyed by topic name.
type Bus struct {
	handlers map[string][]*entry
	nextID   uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: map[string][]*entry{}}
}

// Subscribe registers h on topic t and returns a token for Unsubscribe.
func Subscribe[T any](b *Bus, t Topic[T], h func(T)) Subscription {
	b.nextID++
	e := &entry{
		id: b.nextID,
		call: func(p any) {
			h(p.(T))
		},
	}
	b.handlers[t.name] = append(b.handlers[t.name], e)
	return Subscription{topic: t.name, id: e.id}
}

// Publish delivers payload to every handler subscribed to t. Publishing to a
// topic with no subscribers does nothing.
//
// Dispatch iterates a snapshot of the handler list: handlers added during
// dispatch first run on the next Publish, and handlers removed during
// dispatch are skipped if they have not run yet.
func Publish[T any](b *Bus, t Topic[T], payload T) {
	list := b.handlers[t.name]
	if len(list) == 0 {
		return
	}
	snapshot := make([]*entry, len(list))
	copy(snapshot, list)
	for _, e := range snapshot {
		if e.removed {
			continue
		}
		e.call(payload)
	}
}

// Unsubscribe removes the handler behind s. Unknown, zero, or already
// removed subscriptions are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	if s.id == 0 {
		return
	}
	list := b.handlers[s.topic]
	for i, e := range list {
		if e.id != s.id {
			continue
		}
		e.removed = true
		// Fresh backing array so in-flight snapshots stay intact.
		next := make([]*entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, s.topic)
		} else {
			b.handlers[s.topic] = next
		}
		return
	}
}

// HandlerCount returns the number of live handlers on the named topic.
func (b *Bus) HandlerCount(topic string) int {
	return len(b.handlers[topic])
}
