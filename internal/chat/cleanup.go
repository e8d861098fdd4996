package chat

import (
	"log"
	"time"
)

// Sweeper deletes expired messages on a fixed interval, independent of any
// connection. History reads filter expired rows themselves, so a message
// can be logically gone before the sweeper physically removes it.
type Sweeper struct {
	messages *Messages
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(messages *Messages, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		messages: messages,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks until Stop is called. Start it on its own goroutine.
func (s *Sweeper) Run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	deleted, err := s.messages.DeleteExpired(time.Now())
	if err != nil {
		log.Printf("cleanup: failed to delete expired messages: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("cleanup: deleted %d expired message(s)", deleted)
	}
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
