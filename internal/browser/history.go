package browser

import "sync"

// History is the ordered list of main-frame URLs a page navigated to during
// one test run. Event callbacks may arrive from driver goroutines.
type History struct {
	mu   sync.Mutex
	urls []string
}

func NewHistory() *History {
	return &History{}
}

// Observe records ev if it belongs to the main frame. Sub-frame navigations
// are ignored.
func (h *History) Observe(ev NavigationEvent) {
	if !ev.MainFrame {
		return
	}
	h.Record(ev.URL)
}

func (h *History) Record(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urls = append(h.urls, url)
}

// Snapshot returns a copy of the recorded URLs.
func (h *History) Snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.urls))
	copy(out, h.urls)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.urls)
}

// Reset clears the history. Only called between test runs.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urls = nil
}
