package render

import "sync"

// DefaultPlaceholder is shown while the stored translation is empty.
const DefaultPlaceholder = "Waiting for a sign..."

// Text holds the displayed translation.
type Text struct {
	mu          sync.RWMutex
	value       string
	placeholder string
	version     uint64
	observers   []func(string)
}

// NewText creates an empty text element with the given placeholder.
// An empty placeholder uses DefaultPlaceholder.
func NewText(placeholder string) *Text {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Text{placeholder: placeholder}
}

// Set replaces the stored translation, including with "".
func (t *Text) Set(s string) {
	t.mu.Lock()
	t.value = s
	t.version++
	observers := t.observers
	t.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// Get returns the stored translation.
func (t *Text) Get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

// Version counts Set calls.
func (t *Text) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Display returns what a viewer should show: the translation, or the
// placeholder when the translation is exactly "".
func (t *Text) Display() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.value == "" {
		return t.placeholder
	}
	return t.value
}

// OnChange registers an observer called after every Set.
func (t *Text) OnChange(fn func(string)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}
