package service

import (
	"sync"

	"predmaint/internal/model"
)

const subscriberBuffer = 16

// ProgressBroadcaster fans run progress frames out to stream subscribers.
// Publishing never blocks: a subscriber that stops draining its channel
// misses frames instead of stalling the run worker.
type ProgressBroadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan model.RunProgress]struct{}
}

// NewProgressBroadcaster creates a new progress broadcaster
func NewProgressBroadcaster() *ProgressBroadcaster {
	return &ProgressBroadcaster{
		subs: make(map[string]map[chan model.RunProgress]struct{}),
	}
}

// Subscribe registers interest in one run's progress. The returned cancel
// function removes the subscription and closes the channel.
func (b *ProgressBroadcaster) Subscribe(runID string) (<-chan model.RunProgress, func()) {
	ch := make(chan model.RunProgress, subscriberBuffer)

	b.mu.Lock()
	if _, ok := b.subs[runID]; !ok {
		b.subs[runID] = make(map[chan model.RunProgress]struct{})
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[runID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, runID)
			}
		}
		b.mu.Unlock()
	}

	return ch, cancel
}

// Publish delivers one progress frame to every subscriber of the run
func (b *ProgressBroadcaster) Publish(progress model.RunProgress) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[progress.RunID] {
		select {
		case ch <- progress:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers for a run
func (b *ProgressBroadcaster) SubscriberCount(runID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[runID])
}
