package multiagent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaylabs/agentloop/tools"
)

// delegationRecorder captures worker runs triggered through delegate_task so
// the supervisor pattern can report them alongside the coordinator's run.
type delegationRecorder struct {
	mu   sync.Mutex
	runs map[string]AgentRun
}

type recorderKey struct{}

func withDelegationRecorder(ctx context.Context, rec *delegationRecorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

func delegationRecorderFrom(ctx context.Context) *delegationRecorder {
	rec, _ := ctx.Value(recorderKey{}).(*delegationRecorder)
	return rec
}

type delegateArgs struct {
	Agent string `json:"agent" jsonschema:"required" jsonschema_description:"Name of the team member to delegate to."`
	Task  string `json:"task" jsonschema:"required" jsonschema_description:"The task for the team member to carry out."`
}

// delegateTool hands the coordinator a way to run a worker on a sub-task.
func (o *Orchestrator) delegateTool(owner string) tools.Tool {
	return tools.Typed("delegate_task",
		"Delegate a task to a named team member and return their answer.",
		func(ctx context.Context, args delegateArgs) (any, error) {
			if args.Agent == "" || args.Task == "" {
				return nil, fmt.Errorf("agent and task are required")
			}
			if args.Agent == owner {
				return nil, fmt.Errorf("cannot delegate to yourself")
			}
			sub, ok := o.Agent(args.Agent)
			if !ok {
				return map[string]any{
					"success": false,
					"error":   fmt.Sprintf("no team member named %q", args.Agent),
				}, nil
			}

			run, err := o.runOne(ctx, sub, args.Task)
			if rec := delegationRecorderFrom(ctx); rec != nil {
				rec.mu.Lock()
				rec.runs[sub.Name] = run
				rec.mu.Unlock()
			}
			if err != nil {
				return map[string]any{
					"success": false,
					"agent":   sub.Name,
					"error":   err.Error(),
				}, nil
			}
			return map[string]any{
				"success": true,
				"agent":   sub.Name,
				"result":  run.Output,
			}, nil
		})
}

type callAgentArgs struct {
	Agent   string `json:"agent" jsonschema:"required" jsonschema_description:"Name of the agent to consult."`
	Message string `json:"message" jsonschema:"required" jsonschema_description:"The message or question to send."`
}

// callAgentTool lets any agent consult a named peer directly.
func (o *Orchestrator) callAgentTool(owner string) tools.Tool {
	return tools.Typed("call_agent",
		"Send a message to another agent in the system and return its reply.",
		func(ctx context.Context, args callAgentArgs) (any, error) {
			if args.Message == "" {
				return nil, fmt.Errorf("message is required")
			}
			if args.Agent == owner {
				return nil, fmt.Errorf("cannot call yourself")
			}
			target, ok := o.Agent(args.Agent)
			if !ok {
				return map[string]any{
					"success": false,
					"error":   fmt.Sprintf("no agent named %q", args.Agent),
				}, nil
			}

			runCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
			defer cancel()
			reply, err := target.Agent.Run(runCtx, fmt.Sprintf("[Message from %s]: %s", owner, args.Message))
			if err != nil {
				return map[string]any{
					"success": false,
					"agent":   target.Name,
					"error":   err.Error(),
				}, nil
			}
			return map[string]any{
				"success":  true,
				"agent":    target.Name,
				"response": reply,
			}, nil
		})
}

type listAgentsArgs struct {
	Role string `json:"role,omitempty" jsonschema_description:"Optional role filter: worker or coordinator."`
}

func (o *Orchestrator) listAgentsTool() tools.Tool {
	return tools.Typed("list_agents",
		"List the agents available in this system with their descriptions.",
		func(ctx context.Context, args listAgentsArgs) (any, error) {
			var roster []map[string]any
			for _, sub := range o.ordered() {
				if args.Role != "" && string(sub.Role) != args.Role {
					continue
				}
				roster = append(roster, map[string]any{
					"name":        sub.Name,
					"description": sub.Description,
					"role":        string(sub.Role),
					"addedAt":     sub.AddedAt.Format(time.RFC3339),
				})
			}
			return map[string]any{
				"agents": roster,
				"count":  len(roster),
			}, nil
		})
}
