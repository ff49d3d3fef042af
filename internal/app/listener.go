package app

import (
	"errors"
	"sync"

	"github.com/rbright/oto/internal/hotkey"
)

// mergedListener fans several hotkey sources into one event stream.
type mergedListener struct {
	members []hotkey.Listener
	events  chan hotkey.Event
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func newMergedListener(members ...hotkey.Listener) *mergedListener {
	m := &mergedListener{
		members: members,
		events:  make(chan hotkey.Event, 16),
		done:    make(chan struct{}),
	}
	for _, member := range members {
		m.wg.Add(1)
		go m.forward(member.Events())
	}
	return m
}

func (m *mergedListener) forward(in <-chan hotkey.Event) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			select {
			case m.events <- ev:
			case <-m.done:
				return
			}
		}
	}
}

func (m *mergedListener) Events() <-chan hotkey.Event {
	return m.events
}

// Stop stops every member, then the forwarders.
func (m *mergedListener) Stop() error {
	var errs []error
	m.once.Do(func() {
		for _, member := range m.members {
			errs = append(errs, member.Stop())
		}
		close(m.done)
		m.wg.Wait()
	})
	return errors.Join(errs...)
}
