package mdsa

import (
	"sync"

	"github.com/aretw0/mdsa/pkg/bus"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/rag"
	"github.com/aretw0/mdsa/pkg/router"
)

// Stats is a snapshot of orchestrator activity.
type Stats struct {
	RequestsTotal     int64   `json:"requests_total"`
	RequestsSuccess   int64   `json:"requests_success"`
	RequestsFailed    int64   `json:"requests_failed"`
	RequestsReasoning int64   `json:"requests_reasoning"`
	RequestsEscalated int64   `json:"requests_escalated"`
	SuccessRate       float64 `json:"success_rate"`
	ReasoningRate     float64 `json:"reasoning_rate"`
	AverageLatencyMS  float64 `json:"average_latency_ms"`

	DomainsRegistered int                  `json:"domains_registered"`
	DomainStats       router.Stats         `json:"domain_stats"`
	MessageBus        bus.Stats            `json:"message_bus"`
	Models            *models.ManagerStats `json:"models,omitempty"`
	RAG               *rag.Stats           `json:"rag,omitempty"`
}

// counters accumulates request outcomes. Escalated requests count toward the
// total only, not success or failure.
type counters struct {
	mu           sync.Mutex
	total        int64
	success      int64
	failed       int64
	reasoning    int64
	escalated    int64
	totalLatency float64
}

func (c *counters) record(res domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.totalLatency += res.Metadata.LatencyMS
	switch res.Status {
	case domain.StatusSuccess:
		c.success++
		if res.Metadata.ReasoningUsed {
			c.reasoning++
		}
	case domain.StatusEscalated:
		c.escalated++
	default:
		c.failed++
	}
}

func (c *counters) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total, c.success, c.failed, c.reasoning, c.escalated = 0, 0, 0, 0, 0
	c.totalLatency = 0
}

// Stats returns request counters and the stats of the owned components.
// Rates are fractions in [0,1]; the average latency covers all requests.
func (o *Orchestrator) Stats() Stats {
	o.stats.mu.Lock()
	s := Stats{
		RequestsTotal:     o.stats.total,
		RequestsSuccess:   o.stats.success,
		RequestsFailed:    o.stats.failed,
		RequestsReasoning: o.stats.reasoning,
		RequestsEscalated: o.stats.escalated,
	}
	if s.RequestsTotal > 0 {
		n := float64(s.RequestsTotal)
		s.SuccessRate = float64(s.RequestsSuccess) / n
		s.ReasoningRate = float64(s.RequestsReasoning) / n
		s.AverageLatencyMS = o.stats.totalLatency / n
	}
	o.stats.mu.Unlock()

	o.mu.RLock()
	s.DomainsRegistered = len(o.domains)
	o.mu.RUnlock()
	s.DomainStats = o.router.DomainStats()
	s.MessageBus = o.bus.Stats()
	if o.executor != nil {
		ms := o.executor.Manager().Stats()
		s.Models = &ms
	}
	if o.rag != nil {
		rs := o.rag.Stats()
		s.RAG = &rs
	}
	return s
}

// ResetStats zeroes request and routing counters.
func (o *Orchestrator) ResetStats() {
	o.stats.reset()
	o.router.ResetStats()
	o.logger.Info("statistics reset")
}
