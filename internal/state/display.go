package state

import (
	"sort"
	"strings"

	"apt-detection-app/internal/database"
)

// ThreatFilter narrows the threat list for display. Empty fields match all.
type ThreatFilter struct {
	Search   string                `json:"search"`
	Severity database.Severity     `json:"severity"`
	Status   database.ThreatStatus `json:"status"`
}

// Empty reports whether the filter matches everything.
func (f ThreatFilter) Empty() bool {
	return strings.TrimSpace(f.Search) == "" && f.Severity == "" && f.Status == ""
}

// Match reports whether t passes the filter. Search is case-insensitive over
// description, threat type and both addresses.
func (f ThreatFilter) Match(t database.Threat) bool {
	if f.Severity != "" && t.Severity != f.Severity {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	fields := []string{t.Description, t.ThreatType, deref(t.SourceIP), deref(t.DestinationIP)}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// FilterThreats returns the threats that pass f, preserving order.
func FilterThreats(threats []database.Threat, f ThreatFilter) []database.Threat {
	out := make([]database.Threat, 0, len(threats))
	for _, t := range threats {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// SortBySeverity orders threats most severe first, keeping recency order
// within a severity.
func SortBySeverity(threats []database.Threat) {
	sort.SliceStable(threats, func(i, j int) bool {
		return threats[i].Severity.Rank() > threats[j].Severity.Rank()
	})
}

// Stats are the dashboard counters.
type Stats struct {
	TotalThreats    int `json:"total_threats"`
	CriticalThreats int `json:"critical_threats"`
	ActiveThreats   int `json:"active_threats"`
	OnlineAgents    int `json:"online_agents"`
	TotalAgents     int `json:"total_agents"`
}

// DashboardStats counts critical and active threats and online agents.
func DashboardStats(threats []database.Threat, agents []database.Agent) Stats {
	st := Stats{TotalThreats: len(threats), TotalAgents: len(agents)}
	for _, t := range threats {
		if t.Severity == database.SeverityCritical {
			st.CriticalThreats++
		}
		if t.Status == database.ThreatActive {
			st.ActiveThreats++
		}
	}
	for _, a := range agents {
		if a.Status == database.AgentOnline {
			st.OnlineAgents++
		}
	}
	return st
}

// ResolveAgent looks up the agent a threat refers to. A nil or dangling
// reference yields ok=false.
func ResolveAgent(agents []database.Agent, agentID *string) (database.Agent, bool) {
	if agentID == nil {
		return database.Agent{}, false
	}
	for _, a := range agents {
		if a.ID == *agentID {
			return a, true
		}
	}
	return database.Agent{}, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
