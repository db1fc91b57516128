package fleet

// LockCount reports how many per-account locks are currently tracked.
func (s *Supervisor) LockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
