package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"agents-admin/internal/xynerrors"
	"agents-admin/pkg/docker"
	"agents-admin/pkg/driver"
)

// AgentTaskInput is the inputs contract for an agent_task step: a TaskSpec
// (what to do) paired with an AgentConfig (who does it), mirroring the
// teacher's split between task definition and agent selection so the same
// task can be retried against a different driver.
type AgentTaskInput struct {
	Task  driver.TaskSpec    `json:"task"`
	Agent driver.AgentConfig `json:"agent"`
}

// AgentTaskOutput is what the handler reports as step outputs.
type AgentTaskOutput struct {
	ExitCode   int64                   `json:"exit_code"`
	Driver     string                  `json:"driver"`
	Events     []driver.CanonicalEvent `json:"events,omitempty"`
	EventsFile string                  `json:"events_file,omitempty"`
}

// AgentTaskHandler dispatches a task to whichever registered driver accepts
// the declared AgentConfig, then runs the resulting RunConfig as a
// short-lived container, adapted from the teacher's node-agent execution
// path (pkg/driver + pkg/docker) down to a single run-to-completion call.
type AgentTaskHandler struct {
	client   *docker.Client
	registry *driver.Registry
}

// NewAgentTaskHandler builds a handler over an already-connected Docker
// client and a driver registry populated with every available adapter.
func NewAgentTaskHandler(client *docker.Client, registry *driver.Registry) *AgentTaskHandler {
	return &AgentTaskHandler{client: client, registry: registry}
}

func (h *AgentTaskHandler) Kind() string { return "agent_task" }

func (h *AgentTaskHandler) Execute(ctx context.Context, in StepInput) (StepOutput, error) {
	var input AgentTaskInput
	if err := json.Unmarshal(in.Inputs, &input); err != nil {
		return StepOutput{}, xynerrors.InvalidArgument(xynerrors.KindStepHandlerError, "decode agent_task inputs: %v", err)
	}

	drv, err := h.resolveDriver(&input.Agent)
	if err != nil {
		return StepOutput{}, err
	}

	cfg, err := drv.BuildCommand(ctx, &input.Task, &input.Agent)
	if err != nil {
		return StepOutput{}, xynerrors.Wrap(xynerrors.KindStepHandlerError, err, err)
	}

	volumeName := fmt.Sprintf("xyn-agent-%s", in.StepID)
	if err := h.client.CreateVolume(ctx, volumeName); err != nil {
		return StepOutput{}, xynerrors.Wrap(xynerrors.KindStepHandlerError, err, err)
	}
	defer h.client.RemoveVolume(context.Background(), volumeName, true)

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	cmd := make([]string, 0, len(cfg.Args))
	cmd = append(cmd, cfg.Args...)

	containerID, err := h.client.CreateContainer(ctx, &docker.ContainerConfig{
		Name:       fmt.Sprintf("xyn-agent-step-%s", in.StepID),
		Image:      cfg.Image,
		Entrypoint: cfg.Command,
		Cmd:        cmd,
		Env:        env,
		WorkingDir: cfg.WorkingDir,
		Volumes:    map[string]string{volumeName: cfg.WorkingDir},
	})
	if err != nil {
		return StepOutput{}, xynerrors.Wrap(xynerrors.KindStepHandlerError, err, err)
	}
	defer h.client.RemoveContainer(context.Background(), containerID, true)

	if err := h.client.StartContainer(ctx, containerID); err != nil {
		return StepOutput{}, xynerrors.Wrap(xynerrors.KindStepHandlerError, err, err)
	}

	exitCode, err := h.client.WaitContainer(ctx, containerID)
	if err != nil {
		stopTimeout := 5
		h.client.StopContainer(context.Background(), containerID, &stopTimeout)
		return StepOutput{}, xynerrors.Wrap(xynerrors.KindStepHandlerError, err, err)
	}

	events := h.collectEvents(ctx, containerID, drv)

	eventsFile := ""
	if artifacts, err := drv.CollectArtifacts(ctx, cfg.WorkingDir); err == nil && artifacts != nil {
		eventsFile = artifacts.EventsFile
	}

	outputs, _ := json.Marshal(AgentTaskOutput{
		ExitCode:   exitCode,
		Driver:     drv.Name(),
		Events:     events,
		EventsFile: eventsFile,
	})
	if exitCode != 0 {
		return StepOutput{Outputs: outputs}, xynerrors.InvalidArgument(xynerrors.KindStepHandlerError, "agent container exited with code %d", exitCode)
	}
	return StepOutput{Outputs: outputs}, nil
}

// resolveDriver finds the first registered driver that accepts the declared
// AgentConfig, mirroring how the teacher's registry is meant to be probed
// (AgentConfig.Type determines the driver, but the mapping from type to
// driver name is many-to-one for qwencode's aliases).
func (h *AgentTaskHandler) resolveDriver(agent *driver.AgentConfig) (driver.Driver, error) {
	for _, name := range h.registry.List() {
		d, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		if err := d.Validate(agent); err == nil {
			return d, nil
		}
	}
	return nil, xynerrors.InvalidArgument(xynerrors.KindStepHandlerError, "no driver accepts agent type %q", agent.Type)
}

// collectEvents reads the container's combined log output and parses each
// line through the driver's ParseEvent, discarding lines the driver does
// not recognize (per Driver.ParseEvent's (nil, nil) contract).
func (h *AgentTaskHandler) collectEvents(ctx context.Context, containerID string, drv driver.Driver) []driver.CanonicalEvent {
	logs, err := h.client.ContainerLogs(ctx, containerID, "10000")
	if err != nil {
		return nil
	}
	defer logs.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, logs); err != nil && buf.Len() == 0 {
		return nil
	}

	var events []driver.CanonicalEvent
	scanner := bufio.NewScanner(&buf)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		event, err := drv.ParseEvent(line)
		if err != nil || event == nil {
			continue
		}
		events = append(events, *event)
	}
	return events
}
