package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hrygo/lexisense/ai/agents/events"
	"github.com/hrygo/lexisense/ai/legal"
	"github.com/hrygo/lexisense/ai/session"
)

// SpecialistAgent handles one (domain, intent) pairing. It carries a
// fixed plan and delegates the execute-evaluate-refine loop to the
// shared controller. Agents hold no per-request state, so a pooled
// instance serves every turn of its session.
type SpecialistAgent struct {
	key        legal.AgentKey
	plan       Plan
	controller *RefinementController
}

// Key returns the (domain, intent) pairing this agent serves.
func (a *SpecialistAgent) Key() legal.AgentKey { return a.key }

// Handle runs one full turn for this agent's specialty. The caller
// holds the session lock; history and memory reads here are safe.
func (a *SpecialistAgent) Handle(ctx context.Context, state *session.State, message string, callback events.SafeCallback) (*Outcome, error) {
	task := Task{
		SessionID:  state.ID,
		Message:    message,
		Domain:     a.key.Domain,
		Intent:     a.key.Intent,
		Plan:       a.plan,
		KnownFacts: state.Memory.Entities(),
		History:    state.RecentHistory(historyTurnWindow),
	}
	return a.controller.Run(ctx, task, callback)
}

// historyTurnWindow bounds how much conversation history an agent
// replays into the model context.
const historyTurnWindow = 10

// AgentRegistry constructs specialist agents on demand and pools them
// inside the session, so a session gets exactly one instance per
// (domain, intent) key for its lifetime.
type AgentRegistry struct {
	planner    *Planner
	controller *RefinementController
	logger     *slog.Logger
}

// NewAgentRegistry creates a registry over a shared planner and
// refinement controller.
func NewAgentRegistry(planner *Planner, controller *RefinementController, logger *slog.Logger) *AgentRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentRegistry{planner: planner, controller: controller, logger: logger}
}

// Resolve returns the session's agent for key, constructing it on
// first use. Callers must hold the session lock: that is what makes
// the check-then-construct sequence race-free without a second mutex.
// An unknown intent is a configuration fault and fails the request.
func (r *AgentRegistry) Resolve(state *session.State, key legal.AgentKey) (*SpecialistAgent, error) {
	if cached, ok := state.Agent(key.String()); ok {
		agent, ok := cached.(*SpecialistAgent)
		if !ok {
			return nil, fmt.Errorf("agent registry: pooled entry for %s has unexpected type %T", key, cached)
		}
		return agent, nil
	}

	plan, err := r.planner.BuildPlan(key.Intent)
	if err != nil {
		return nil, fmt.Errorf("agent registry: construct agent for %s: %w", key, err)
	}

	agent := &SpecialistAgent{key: key, plan: plan, controller: r.controller}
	state.PutAgent(key.String(), agent)
	r.logger.Info("agent registry: constructed specialist",
		"session_id", state.ID, "agent_key", key.String(), "pool_size", state.AgentCount())
	return agent, nil
}
