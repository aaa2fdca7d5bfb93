package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"agents-admin/internal/xynerrors"
	"agents-admin/pkg/docker"
)

// ActionTaskSpec is the inputs contract for an action_task step: run a
// declared command inside a short-lived container and report its exit code
// and captured log tail, adapted from the teacher's node-scheduling runtime
// container lifecycle, reduced to run-to-completion (no long-lived node, no
// heartbeat registry — see SPEC_FULL.md's action_task section).
type ActionTaskSpec struct {
	Image      string            `json:"image"`
	Cmd        []string          `json:"cmd"`
	Env        map[string]string `json:"env,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Timeout    string            `json:"timeout,omitempty"`
}

// ActionTaskOutput is what the handler reports as step outputs.
type ActionTaskOutput struct {
	ExitCode int64  `json:"exit_code"`
	LogTail  string `json:"log_tail"`
}

// ActionTaskHandler dispatches to a Docker container per declared command.
type ActionTaskHandler struct {
	client *docker.Client
}

// NewActionTaskHandler builds a handler over an already-connected Docker client.
func NewActionTaskHandler(client *docker.Client) *ActionTaskHandler {
	return &ActionTaskHandler{client: client}
}

func (h *ActionTaskHandler) Kind() string { return "action_task" }

func (h *ActionTaskHandler) Execute(ctx context.Context, in StepInput) (StepOutput, error) {
	var spec ActionTaskSpec
	if err := json.Unmarshal(in.Inputs, &spec); err != nil {
		return StepOutput{}, xynerrors.InvalidArgument(xynerrors.KindStepHandlerError, "decode action_task inputs: %v", err)
	}
	if spec.Image == "" {
		return StepOutput{}, xynerrors.InvalidArgument(xynerrors.KindStepHandlerError, "action_task requires image")
	}

	if spec.Timeout != "" {
		if d, err := time.ParseDuration(spec.Timeout); err == nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	containerID, err := h.client.CreateContainer(ctx, &docker.ContainerConfig{
		Name:       fmt.Sprintf("xyn-step-%s", in.StepID),
		Image:      spec.Image,
		Cmd:        spec.Cmd,
		Env:        env,
		WorkingDir: spec.WorkingDir,
	})
	if err != nil {
		return StepOutput{}, xynerrors.Wrap(xynerrors.KindStepHandlerError, err, err)
	}
	defer h.client.RemoveContainer(context.Background(), containerID, true)

	if err := h.client.StartContainer(ctx, containerID); err != nil {
		return StepOutput{}, xynerrors.Wrap(xynerrors.KindStepHandlerError, err, err)
	}

	waitCtx, waitCancel := context.WithCancel(ctx)
	defer waitCancel()

	exitCode, err := h.client.WaitContainer(waitCtx, containerID)
	if err != nil {
		// Cooperative cancellation: if our context was cancelled, stop the
		// container instead of leaving it running after we give up waiting.
		stopTimeout := 5
		h.client.StopContainer(context.Background(), containerID, &stopTimeout)
		return StepOutput{}, xynerrors.Wrap(xynerrors.KindStepHandlerError, err, err)
	}

	logTail := ""
	if logs, err := h.client.ContainerLogs(ctx, containerID, "200"); err == nil {
		defer logs.Close()
		if b, err := io.ReadAll(logs); err == nil {
			logTail = string(b)
		}
	}

	outputs, _ := json.Marshal(ActionTaskOutput{ExitCode: exitCode, LogTail: logTail})
	if exitCode != 0 {
		return StepOutput{Outputs: outputs}, xynerrors.InvalidArgument(xynerrors.KindStepHandlerError, "container exited with code %d", exitCode)
	}
	return StepOutput{Outputs: outputs}, nil
}
