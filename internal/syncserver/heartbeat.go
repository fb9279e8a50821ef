package syncserver

import "time"

func (s *Server) heartbeat(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep terminates every client that has not answered the previous ping,
// then marks the rest not-alive and pings them. A pong flips a client back
// to alive before the next sweep.
func (s *Server) sweep() {
	var dead, live []*client
	s.mu.Lock()
	for id, c := range s.clients {
		if !c.alive.Load() {
			dead = append(dead, c)
			delete(s.clients, id)
			continue
		}
		c.alive.Store(false)
		live = append(live, c)
	}
	n := len(s.clients)
	s.mu.Unlock()

	for _, c := range dead {
		s.logger.Info("client timed out", "id", c.id, "clients", n)
		c.terminate()
	}
	for _, c := range live {
		if err := c.ping(); err != nil {
			s.logger.Debug("ping failed", "id", c.id, "err", err)
		}
	}
}
