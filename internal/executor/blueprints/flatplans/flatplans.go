// Package flatplans registers the flat, kind-dispatched blueprints: plans
// declared as an ordered StepDef list (as opposed to packinstall/packupgrade's
// hand-written Go Run functions) and executed by Executor.runFlatPlan through
// the handlers.Registry. These are the plans a client actually names in
// POST /runs's blueprint_ref, exercising every registered step handler.
package flatplans

import (
	"encoding/json"
	"time"

	"agents-admin/internal/executor/blueprints"
	"agents-admin/internal/model"
	"agents-admin/internal/queue"
)

// DefaultName is the blueprint_ref substituted by the API when a caller
// submits a run without one, per spec §6's optional blueprint_ref.
const DefaultName = "noop"

// ContainerTaskName runs a single action_task step; the caller supplies the
// ActionTaskSpec fields (image, cmd, env, working_dir, timeout) as the run's
// inputs.
const ContainerTaskName = "container_task"

// AgentTaskName runs a single agent_task step; the caller supplies "task"
// and "agent" as the run's inputs (see handlers.AgentTaskInput).
const AgentTaskName = "agent_task_demo"

// Noop is the minimal one-step plan behind spec §8 scenario 1: a single
// transform step that declares no inputs, so its recorded outputs are the
// empty object {} (the run's inputs are not copied into them), producing
// exactly xyn.step.started and xyn.step.completed between run.started and
// run.completed.
func Noop() *blueprints.Blueprint {
	return &blueprints.Blueprint{
		Name: DefaultName,
		Steps: []blueprints.StepDef{
			{ID: "echo", Name: "echo inputs", Kind: model.StepKindTransform},
		},
		MaxSteps:         4,
		WallClockTimeout: 2 * time.Minute,
		RetryPolicy:      queue.DefaultRetryPolicy(),
	}
}

// ContainerTask runs a declared command inside a short-lived container via
// ActionTaskHandler, a flat-plan counterpart to packinstall/packupgrade's
// hand-written blueprints that reaches the Docker-backed step handler.
func ContainerTask() *blueprints.Blueprint {
	inputs, _ := json.Marshal(map[string]string{
		"image":       "{{inputs.image}}",
		"cmd":         "{{inputs.cmd}}",
		"env":         "{{inputs.env}}",
		"working_dir": "{{inputs.working_dir}}",
		"timeout":     "{{inputs.timeout}}",
	})
	return &blueprints.Blueprint{
		Name: ContainerTaskName,
		Steps: []blueprints.StepDef{
			{ID: "run", Name: "run container", Kind: model.StepKindActionTask, Inputs: inputs},
		},
		MaxSteps:         4,
		WallClockTimeout: 30 * time.Minute,
		RetryPolicy:      queue.DefaultRetryPolicy(),
	}
}

// AgentTask dispatches a task to whichever registered driver accepts the
// caller's declared agent config via AgentTaskHandler, a flat-plan
// counterpart reaching the agent driver adapters.
func AgentTask() *blueprints.Blueprint {
	inputs, _ := json.Marshal(map[string]string{
		"task":  "{{inputs.task}}",
		"agent": "{{inputs.agent}}",
	})
	return &blueprints.Blueprint{
		Name: AgentTaskName,
		Steps: []blueprints.StepDef{
			{ID: "run", Name: "run agent", Kind: model.StepKindAgentTask, Inputs: inputs},
		},
		MaxSteps:         4,
		WallClockTimeout: 30 * time.Minute,
		RetryPolicy:      queue.DefaultRetryPolicy(),
	}
}
