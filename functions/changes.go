package functions

import "sync"

// changeFeed fans a "functions changed" signal out to subscribers. Each
// subscriber channel holds at most one pending signal, so a burst of
// registrations collapses into a single tools/list_changed downstream.
type changeFeed struct {
	mu     sync.Mutex
	subs   []chan struct{}
	closed bool
}

func (f *changeFeed) subscribe() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{}, 1)
	if f.closed {
		close(ch)
		return ch
	}
	f.subs = append(f.subs, ch)
	return ch
}

func (f *changeFeed) publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// close ends every subscription. Subscribing afterwards yields a closed
// channel.
func (f *changeFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}
