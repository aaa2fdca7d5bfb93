package driver

// ============================================================================
// CanonicalEvent - 统一事件格式
// ============================================================================

// EventType 是跨 CLI 统一后的事件类型
type EventType string

const (
	EventMessage       EventType = "message"
	EventToolUseStart  EventType = "tool_use_start"
	EventToolResult    EventType = "tool_result"
	EventCommand       EventType = "command"
	EventCommandOutput EventType = "command_output"
	EventFileRead      EventType = "file_read"
	EventFileWrite     EventType = "file_write"
	EventError         EventType = "error"
	EventRunCompleted  EventType = "run_completed"
)

// CanonicalEvent 是 Driver.ParseEvent 的统一输出，屏蔽各 CLI 的输出格式差异。
type CanonicalEvent struct {
	// Type 统一事件类型
	Type EventType `json:"type"`

	// Payload 原始解析后的字段，保留 CLI 特定细节供下游按需读取
	Payload map[string]interface{} `json:"payload"`
}

// Artifacts 是 Driver.CollectArtifacts 收集到的产物引用
type Artifacts struct {
	// EventsFile 事件日志文件路径（workspaceDir 内）
	EventsFile string `json:"events_file,omitempty"`

	// DiffFile 代码变更 diff 文件路径（可选）
	DiffFile string `json:"diff_file,omitempty"`

	// Extra 其他产物路径，按名称索引
	Extra map[string]string `json:"extra,omitempty"`
}
