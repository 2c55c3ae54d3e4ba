package valueobject

import "strings"

// Role 用户角色
type Role string

const (
	RoleStudent Role = "student"
	RoleMember  Role = "member" // SRC council member
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a stored role name to a Role. Unknown names fall back to
// student, the least privileged role.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleMember, RoleStaff, RoleAdmin:
		return r
	}
	return RoleStudent
}

// Capability is a single permission the chat service checks.
type Capability uint8

const (
	// CapStartChat lets a user open a helpdesk session.
	CapStartChat Capability = 1 << iota
	// CapViewAllSessions grants elevated read/write on any session.
	CapViewAllSessions
	// CapHandleChats lets a user act as an agent: publish presence,
	// take assignments and see the queue.
	CapHandleChats
	// CapAssignOthers lets a user assign sessions to other agents.
	CapAssignOthers
	// CapSuperviseAll lists every agent's sessions on the dashboard.
	CapSuperviseAll
)

// Capabilities is a resolved permission set.
type Capabilities uint8

// Has reports whether c includes cap.
func (c Capabilities) Has(cap Capability) bool {
	return Capabilities(cap)&c != 0
}

// ResolveCapabilities is the single place role names turn into
// permissions.
func ResolveCapabilities(role Role) Capabilities {
	switch role {
	case RoleAdmin:
		return Capabilities(CapStartChat | CapViewAllSessions | CapHandleChats | CapAssignOthers | CapSuperviseAll)
	case RoleStaff:
		return Capabilities(CapStartChat | CapViewAllSessions | CapHandleChats | CapAssignOthers)
	default:
		return Capabilities(CapStartChat)
	}
}

// Principal 当前请求的调用者（不可变）
type Principal struct {
	id   uint
	name string
	role Role
	caps Capabilities
}

// NewPrincipal 创建调用者值对象
func NewPrincipal(id uint, name string, role Role) Principal {
	return Principal{
		id:   id,
		name: name,
		role: role,
		caps: ResolveCapabilities(role),
	}
}

// ID 返回用户ID
func (p Principal) ID() uint {
	return p.id
}

// Name 返回显示名
func (p Principal) Name() string {
	return p.name
}

// Role 返回角色
func (p Principal) Role() Role {
	return p.role
}

// Can reports whether the principal holds cap.
func (p Principal) Can(cap Capability) bool {
	return p.caps.Has(cap)
}

// IsElevated reports staff-or-admin access to any session.
func (p Principal) IsElevated() bool {
	return p.caps.Has(CapViewAllSessions)
}

// IsAnonymous 判断是否未登录
func (p Principal) IsAnonymous() bool {
	return p.id == 0
}
