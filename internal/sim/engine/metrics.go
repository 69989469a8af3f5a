package engine

// Metrics is a read-only view of loop counters, updated after every loop step
// and safe to read from HTTP handlers.
type Metrics struct {
	Status

	InboundTotal  uint64 `json:"inbound_total"`
	RejectedTotal uint64 `json:"rejected_total"`
	SlowDropTotal uint64 `json:"slow_drop_total"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Connect int `json:"connect"`
	Inbox   int `json:"inbox"`
	Leave   int `json:"leave"`
	Results int `json:"results"`
}

func (e *Engine) Metrics() Metrics {
	if e == nil {
		return Metrics{}
	}
	if m := e.metrics.Load(); m != nil {
		return *m
	}
	return Metrics{}
}

func (e *Engine) publishMetrics() {
	m := &Metrics{
		Status:        e.status(),
		InboundTotal:  e.inbound.Load(),
		RejectedTotal: e.rejected.Load(),
		SlowDropTotal: e.slow.Load(),
		QueueDepths: QueueDepths{
			Connect: len(e.connect),
			Inbox:   len(e.inbox),
			Leave:   len(e.leave),
			Results: len(e.results),
		},
	}
	e.metrics.Store(m)
}
