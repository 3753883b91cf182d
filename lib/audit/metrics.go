// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// maxToolLabel bounds the tool label so that an adversarial tool name
// cannot blow up series size.
const maxToolLabel = 64

// Metrics holds the counters derived from audit events. Each Ledger
// owns one on a private registry; nothing is registered globally.
type Metrics struct {
	registry *prometheus.Registry

	goals              *prometheus.CounterVec
	toolCalls          *prometheus.CounterVec
	securityViolations *prometheus.CounterVec
	egressBlocks       prometheus.Counter
	authDenied         *prometheus.CounterVec
	retrieval          *prometheus.SummaryVec
}

// metricFamily names one exported family and the header written for
// it.
type metricFamily struct {
	name string
	help string
	kind string
}

// families lists every exported family in exposition order. The
// registry omits a vector with no children, so WriteText falls back to
// these headers to keep the family set stable.
var families = []metricFamily{
	{"physiclaw_auth_denied_total", "Requests refused by the authorization gate, by persona.", "counter"},
	{"physiclaw_egress_blocks_total", "Outbound connections that triggered the egress kill-switch.", "counter"},
	{"physiclaw_goals_total", "Goals submitted, by persona.", "counter"},
	{"physiclaw_memory_retrieval_seconds", "Memory retrieval latency in seconds, by layer.", "summary"},
	{"physiclaw_security_violations_total", "Tool requests refused by the persona whitelist.", "counter"},
	{"physiclaw_tool_calls_total", "Tool executions, by persona, tool, and outcome.", "counter"},
}

func counterOpts(name string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Name: name, Help: helpFor(name)}
}

func helpFor(name string) string {
	for _, family := range families {
		if family.name == name {
			return family.help
		}
	}
	return ""
}

// NewMetrics creates zeroed counters on a fresh registry.
func NewMetrics() *Metrics {
	metrics := &Metrics{
		registry:           prometheus.NewRegistry(),
		goals:              prometheus.NewCounterVec(counterOpts("physiclaw_goals_total"), []string{"persona"}),
		toolCalls:          prometheus.NewCounterVec(counterOpts("physiclaw_tool_calls_total"), []string{"persona", "tool", "outcome"}),
		securityViolations: prometheus.NewCounterVec(counterOpts("physiclaw_security_violations_total"), []string{"persona"}),
		egressBlocks:       prometheus.NewCounter(counterOpts("physiclaw_egress_blocks_total")),
		authDenied:         prometheus.NewCounterVec(counterOpts("physiclaw_auth_denied_total"), []string{"persona"}),
		retrieval: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name: "physiclaw_memory_retrieval_seconds",
			Help: helpFor("physiclaw_memory_retrieval_seconds"),
		}, []string{"layer"}),
	}
	metrics.registry.MustRegister(
		metrics.goals,
		metrics.toolCalls,
		metrics.securityViolations,
		metrics.egressBlocks,
		metrics.authDenied,
		metrics.retrieval,
	)
	return metrics
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe applies one audit event to the counters.
func (m *Metrics) Observe(kind string, payload map[string]any) {
	switch kind {
	case EventGoal:
		m.goals.WithLabelValues(labelValue(payload, KeyPersona, 0)).Inc()
	case EventToolCall:
		m.toolCalls.WithLabelValues(
			labelValue(payload, KeyPersona, 0),
			labelValue(payload, KeyTool, maxToolLabel),
			labelValue(payload, KeyOutcome, 0),
		).Inc()
	case EventSecurityViolation:
		m.securityViolations.WithLabelValues(labelValue(payload, KeyPersona, 0)).Inc()
	case EventEgressBlock:
		m.egressBlocks.Inc()
	case EventAuthDenied:
		m.authDenied.WithLabelValues(labelValue(payload, KeyPersona, 0)).Inc()
	}
}

// ObserveLatency records one retrieval latency. It rejects an empty
// layer and a negative or non-finite duration, and reports
// whether the observation was kept.
func (m *Metrics) ObserveLatency(layer string, seconds float64) bool {
	if layer == "" || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return false
	}
	m.retrieval.WithLabelValues(cleanLabel(layer, 0)).Observe(seconds)
	return true
}

// WriteText writes the Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	gathered, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	gatheredByName := make(map[string]int, len(gathered))
	for index, family := range gathered {
		gatheredByName[family.GetName()] = index
	}

	encoder := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, family := range families {
		index, ok := gatheredByName[family.name]
		if !ok {
			if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", family.name, family.help, family.name, family.kind); err != nil {
				return fmt.Errorf("writing %s: %w", family.name, err)
			}
			continue
		}
		if err := encoder.Encode(gathered[index]); err != nil {
			return fmt.Errorf("encoding %s: %w", family.name, err)
		}
	}
	return nil
}

func labelValue(payload map[string]any, key string, limit int) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return "unknown"
	}
	if text, ok := value.(string); ok {
		return cleanLabel(text, limit)
	}
	return cleanLabel(fmt.Sprint(value), limit)
}

// cleanLabel makes s a valid label value: valid UTF-8 and at most limit
// runes when limit is positive.
func cleanLabel(s string, limit int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	if limit > 0 && utf8.RuneCountInString(s) > limit {
		runes := []rune(s)
		s = string(runes[:limit])
	}
	return s
}
