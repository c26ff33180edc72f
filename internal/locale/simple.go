package locale

import (
	"sort"
	"sync"
)

// SystemLocale, as an initial locale, selects the locale of the process
// environment.
const SystemLocale = "system"

// SimpleController switches between catalogs that are all in memory.
type SimpleController struct {
	mu       sync.RWMutex
	locale   string
	messages map[string]map[string]string
}

// NewSimpleController creates a controller starting at initial, or at the
// supported locale closest to the environment when initial is SystemLocale.
func NewSimpleController(initial string, messages map[string]map[string]string) *SimpleController {
	if initial == SystemLocale {
		supported := make([]string, 0, len(messages))
		for l := range messages {
			supported = append(supported, l)
		}
		sort.Strings(supported)
		initial = Resolve(initial, supported)
	}
	return &SimpleController{locale: initial, messages: messages}
}

// Locale returns the active locale.
func (c *SimpleController) Locale() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.locale
}

// SetLocale changes the active locale. A locale without catalog is allowed;
// lookups then miss.
func (c *SimpleController) SetLocale(locale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locale = locale
}

// Messages returns the catalog of the active locale, nil if there is none.
func (c *SimpleController) Messages() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messages[c.locale]
}

// Message looks key up in the active catalog.
func (c *SimpleController) Message(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.messages[c.locale][key]
	return s, ok
}
