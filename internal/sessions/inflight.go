package sessions

// inflightCall shares the outcome of a single underlying attempt between
// every caller that initiated the same logical connection concurrently.
type inflightCall struct {
	done  chan struct{}
	value interface{}
	err   error
}

// dedupe collapses concurrent initiations for the same key into one invocation
// of create. Late callers block until the first one finishes and observe the
// same outcome.
func (m *Manager) dedupe(key string, create func() (interface{}, error)) (interface{}, error) {
	m.mu.Lock()
	if call, ok := m.inflight[key]; ok {
		m.mu.Unlock()
		<-call.done
		return call.value, call.err
	}

	call := &inflightCall{done: make(chan struct{})}
	m.inflight[key] = call
	m.mu.Unlock()

	call.value, call.err = create()

	m.mu.Lock()
	delete(m.inflight, key)
	m.mu.Unlock()
	close(call.done)

	return call.value, call.err
}
