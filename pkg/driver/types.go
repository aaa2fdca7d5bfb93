package driver

// ============================================================================
// TaskType - 任务类型枚举
// ============================================================================

// TaskType 任务类型，影响默认配置和处理策略
type TaskType string

const (
	// TaskTypeGeneral 通用任务：默认类型，无特殊配置
	TaskTypeGeneral TaskType = "general"

	// TaskTypeDevelopment 开发任务：需要代码仓库和文件读写权限
	TaskTypeDevelopment TaskType = "development"

	// TaskTypeResearch 研究任务：纯对话，无工作空间
	TaskTypeResearch TaskType = "research"

	// TaskTypeOperation 运维任务：需要系统权限，SSH 访问
	TaskTypeOperation TaskType = "operation"

	// TaskTypeAutomation 自动化任务：后台执行，有资源限制
	TaskTypeAutomation TaskType = "automation"
)

// ============================================================================
// WorkspaceType - 工作空间类型枚举
// ============================================================================

// WorkspaceType 工作空间类型
type WorkspaceType string

const (
	// WorkspaceTypeGit Git 仓库工作空间
	WorkspaceTypeGit WorkspaceType = "git"

	// WorkspaceTypeLocal 本地目录工作空间
	WorkspaceTypeLocal WorkspaceType = "local"

	// WorkspaceTypeRemote 远程系统工作空间
	WorkspaceTypeRemote WorkspaceType = "remote"

	// WorkspaceTypeVolume 持久化卷工作空间
	WorkspaceTypeVolume WorkspaceType = "volume"
)

// ============================================================================
// SecurityPolicy - 安全策略枚举
// ============================================================================

// SecurityPolicy 安全策略等级
type SecurityPolicy string

const (
	// SecurityPolicyStrict 严格策略：最小权限，需要审批
	SecurityPolicyStrict SecurityPolicy = "strict"

	// SecurityPolicyStandard 标准策略：平衡安全与便利
	SecurityPolicyStandard SecurityPolicy = "standard"

	// SecurityPolicyPermissive 宽松策略：较少限制，适用于受信环境
	SecurityPolicyPermissive SecurityPolicy = "permissive"
)
