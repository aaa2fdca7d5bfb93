// Package qwencode 实现 Qwen Code CLI Driver
package qwencode

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"agents-admin/pkg/driver"
)

// Driver Qwen Code CLI 驱动
type Driver struct{}

// New 创建 Qwen Code Driver
func New() *Driver {
	return &Driver{}
}

// Name 返回驱动名称
func (d *Driver) Name() string {
	return "qwencode-v1"
}

// Validate 验证 AgentConfig
func (d *Driver) Validate(agent *driver.AgentConfig) error {
	switch agent.Type {
	case "qwencode", "qwen-code", "qwen":
		return nil
	default:
		return fmt.Errorf("agent type mismatch: expected qwencode, got %s", agent.Type)
	}
}

// BuildCommand 构建运行命令
func (d *Driver) BuildCommand(ctx context.Context, spec *driver.TaskSpec, agent *driver.AgentConfig) (*driver.RunConfig, error) {
	args := []string{
		"-p", spec.Prompt,
	}

	model := "qwen3-coder"
	if m, ok := agent.Parameters["model"].(string); ok && m != "" {
		model = m
	}
	args = append(args, "--model", model)

	if yolo, ok := agent.Parameters["yolo"].(bool); ok && yolo {
		args = append(args, "--yolo")
	}

	env := map[string]string{}
	apiKey, hasAPIKey := agent.Parameters["api_key"].(string)
	baseURL, hasBaseURL := agent.Parameters["base_url"].(string)
	if hasAPIKey && hasBaseURL && apiKey != "" && baseURL != "" {
		env["OPENAI_API_KEY"] = apiKey
		env["OPENAI_BASE_URL"] = baseURL
	}

	return &driver.RunConfig{
		Image:      "runners/qwencode:latest",
		Command:    []string{"qwen"},
		Args:       args,
		Env:        env,
		WorkingDir: "/workspace",
	}, nil
}

// ParseEvent 解析事件
func (d *Driver) ParseEvent(line string) (*driver.CanonicalEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, nil // 非 JSON 行，忽略
	}

	eventType, _ := raw["type"].(string)
	if eventType == "" {
		return nil, nil
	}

	canonicalType := mapEventType(eventType)
	if canonicalType == "" {
		return nil, nil
	}

	return &driver.CanonicalEvent{
		Type:    canonicalType,
		Payload: raw,
	}, nil
}

func mapEventType(qwenType string) driver.EventType {
	mapping := map[string]driver.EventType{
		"message":    driver.EventMessage,
		"thinking":   driver.EventMessage,
		"tool_call":  driver.EventToolUseStart,
		"file_write": driver.EventFileWrite,
		"done":       driver.EventRunCompleted,
	}
	return mapping[qwenType]
}

// CollectArtifacts 收集产物
func (d *Driver) CollectArtifacts(ctx context.Context, workspaceDir string) (*driver.Artifacts, error) {
	return &driver.Artifacts{
		EventsFile: filepath.Join(workspaceDir, ".qwen", "events.jsonl"),
	}, nil
}
