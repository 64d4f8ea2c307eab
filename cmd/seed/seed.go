package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"apt-detection-app/internal/database"
)

var (
	threatTypes   = []string{"port_scan", "brute_force", "malware_beacon", "dns_tunneling", "lateral_movement", "data_exfiltration", "arp_spoofing"}
	protocols     = []string{"TCP", "UDP", "ICMP"}
	ports         = []int{22, 23, 53, 80, 443, 445, 3389, 8080}
	logLevels     = []database.LogLevel{database.LogInfo, database.LogInfo, database.LogInfo, database.LogWarning, database.LogError, database.LogCritical}
	logMessages   = []string{"packet capture rotated", "signature database updated", "interface eth0 link up", "dropped packets above threshold", "sensor restarted", "rule evaluation slow"}
	agentStatuses = []database.AgentStatus{database.AgentOnline, database.AgentOnline, database.AgentOnline, database.AgentOffline, database.AgentError}
)

// Store is the subset of the database used to seed demo data.
type Store interface {
	CreateAgent(ctx context.Context, in database.NewAgent) (*database.Agent, error)
	UpdateAgentHeartbeat(ctx context.Context, agentID string, hb database.Heartbeat, seenAt time.Time) error
	CreateThreat(ctx context.Context, in database.NewThreat) (*database.Threat, error)
	CreateLog(ctx context.Context, in database.NewLog) (*database.SystemLog, error)
	CreateUserSettings(ctx context.Context, userID string, in database.SettingsUpdate) (*database.UserSettings, error)
}

// Plan describes how much data to generate.
type Plan struct {
	Agents int
	// MaxThreats and MaxLogs bound the random per-agent counts.
	MaxThreats int
	MaxLogs    int
	// UserID, when set, gets default settings first so every seeded threat
	// fans out a notification to that user.
	UserID string
}

// Result counts the rows created.
type Result struct {
	Agents  int
	Threats int
	Logs    int
}

type seeder struct {
	store Store
	rng   *rand.Rand
	now   func() time.Time
}

func newSeeder(store Store, seed uint64) *seeder {
	return &seeder{
		store: store,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run generates plan. Individual row failures are logged and skipped; only a
// cancelled context stops the run.
func (s *seeder) Run(ctx context.Context, plan Plan) (Result, error) {
	var res Result

	if plan.UserID != "" {
		_, err := s.store.CreateUserSettings(ctx, plan.UserID, database.DefaultSettings())
		if err != nil && !errors.Is(err, database.ErrAlreadyExists) {
			return res, fmt.Errorf("failed to create settings for %s: %w", plan.UserID, err)
		}
	}

	for i := 1; i <= plan.Agents; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		agent, err := s.agent(ctx, i)
		if err != nil {
			slog.Warn("Failed to create agent", "index", i, "error", err)
			continue
		}
		res.Agents++

		for n := s.rng.IntN(plan.MaxThreats + 1); n > 0; n-- {
			if _, err := s.store.CreateThreat(ctx, s.threat(agent.ID)); err != nil {
				slog.Warn("Failed to create threat", "agent_id", agent.ID, "error", err)
				continue
			}
			res.Threats++
		}

		for n := s.rng.IntN(plan.MaxLogs + 1); n > 0; n-- {
			if _, err := s.store.CreateLog(ctx, s.log(agent.ID)); err != nil {
				slog.Warn("Failed to create log", "agent_id", agent.ID, "error", err)
				continue
			}
			res.Logs++
		}

		if i%10 == 0 {
			slog.Info("Progress", "agents", res.Agents, "threats", res.Threats, "logs", res.Logs)
		}
	}
	return res, nil
}

func (s *seeder) agent(ctx context.Context, i int) (*database.Agent, error) {
	status := agentStatuses[s.rng.IntN(len(agentStatuses))]
	in := database.NewAgent{
		AgentName: fmt.Sprintf("sensor-%03d", i),
		IPAddress: fmt.Sprintf("10.0.%d.%d", i/250, i%250+1),
		Status:    status,
	}
	if status == database.AgentOffline {
		return s.store.CreateAgent(ctx, in)
	}

	seen := s.now()
	in.LastSeen = &seen
	agent, err := s.store.CreateAgent(ctx, in)
	if err != nil {
		return nil, err
	}
	hb := database.Heartbeat{
		CPUUsage:    s.percent(),
		MemoryUsage: s.percent(),
		DiskUsage:   s.percent(),
	}
	if err := s.store.UpdateAgentHeartbeat(ctx, agent.ID, hb, seen); err != nil {
		slog.Warn("Failed to record heartbeat", "agent_id", agent.ID, "error", err)
	}
	return agent, nil
}

func (s *seeder) threat(agentID string) database.NewThreat {
	threatType := threatTypes[s.rng.IntN(len(threatTypes))]
	src := fmt.Sprintf("203.0.113.%d", s.rng.IntN(254)+1)
	dst := fmt.Sprintf("192.168.1.%d", s.rng.IntN(254)+1)
	port := ports[s.rng.IntN(len(ports))]
	proto := protocols[s.rng.IntN(len(protocols))]
	return database.NewThreat{
		AgentID:       &agentID,
		ThreatType:    threatType,
		Severity:      database.AllSeverities[s.rng.IntN(len(database.AllSeverities))],
		Description:   fmt.Sprintf("%s from %s to %s:%d", threatType, src, dst, port),
		SourceIP:      &src,
		DestinationIP: &dst,
		Port:          &port,
		Protocol:      &proto,
		Status:        database.ThreatActive,
		DetectedAt:    s.now().Add(-time.Duration(s.rng.IntN(24*60)) * time.Minute),
	}
}

func (s *seeder) log(agentID string) database.NewLog {
	meta, _ := json.Marshal(map[string]any{"seeded": true, "sequence": s.rng.IntN(1_000_000)})
	return database.NewLog{
		AgentID:  &agentID,
		LogLevel: logLevels[s.rng.IntN(len(logLevels))],
		Message:  logMessages[s.rng.IntN(len(logMessages))],
		Metadata: meta,
	}
}

func (s *seeder) percent() *float64 {
	v := float64(s.rng.IntN(10000)) / 100
	return &v
}
