package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleMember is an end user of the reflection service; members can
	// only touch their own attempts, sessions, and entries.
	RoleMember = "member"
	// RoleOperator runs the call fleet: queue visibility, manual
	// requeues, live call inspection.
	RoleOperator   = "operator"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
