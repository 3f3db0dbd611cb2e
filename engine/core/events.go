package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01
	// Keyboard key pressed. Data is a KeyEvent.
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02
	// Keyboard key released. Data is a KeyEvent.
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03
	// Framebuffer resized. Data is a ResizeEvent.
	EVENT_CODE_RESIZED SystemEventCode = 0x08
	// A watched asset was created, written or removed. Data is an AssetEvent.
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type KeyEvent struct {
	Key int
}

type ResizeEvent struct {
	Width  int
	Height int
}

type AssetEvent struct {
	Path    string
	Removed bool
}

type EventContext struct {
	Code   SystemEventCode
	Sender interface{}
	Data   interface{}
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously on the caller's goroutine.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{registered: make(map[SystemEventCode][]registeredEvent)}
}

// Register listens for code. A listener can only be registered once per
// code; duplicates return false.
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire delivers ctx to listeners in registration order until one handles it.
func (b *EventBus) Fire(ctx EventContext) bool {
	b.mu.RLock()
	events := append([]registeredEvent(nil), b.registered[ctx.Code]...)
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(ctx) {
			return true
		}
	}
	return false
}

func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = make(map[SystemEventCode][]registeredEvent)
}
