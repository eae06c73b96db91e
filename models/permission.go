package models

// Permission is an atomic capability tag in domain:action form.
// Permissions are never parameterized; resource scoping happens in the
// attribute rules, not in the permission itself.
type Permission string

const (
	// Client domain
	PermClientCreate    Permission = "client:create"
	PermClientRead      Permission = "client:read"
	PermClientUpdate    Permission = "client:update"
	PermClientDischarge Permission = "client:discharge"
	PermClientPHIAccess Permission = "client:phi_access"

	// Scheduling domain
	PermScheduleCreate Permission = "schedule:create"
	PermScheduleRead   Permission = "schedule:read"
	PermScheduleUpdate Permission = "schedule:update"
	PermScheduleDelete Permission = "schedule:delete"

	// Electronic visit verification domain
	PermEVVCreate   Permission = "evv:create"
	PermEVVRead     Permission = "evv:read"
	PermEVVUpdate   Permission = "evv:update"
	PermEVVOverride Permission = "evv:override"

	// Billing domain
	PermBillingRead   Permission = "billing:read"
	PermBillingSubmit Permission = "billing:submit"
	PermBillingAdjust Permission = "billing:adjust"

	// Payroll domain
	PermPayrollRead    Permission = "payroll:read"
	PermPayrollProcess Permission = "payroll:process"

	// User administration domain
	PermUserCreate     Permission = "user:create"
	PermUserRead       Permission = "user:read"
	PermUserUpdate     Permission = "user:update"
	PermUserDeactivate Permission = "user:deactivate"

	// Reporting domain
	PermReportRead   Permission = "report:read"
	PermReportExport Permission = "report:export"

	// Compliance and system domains
	PermAuditRead        Permission = "audit:read"
	PermComplianceManage Permission = "compliance:manage"
	PermSystemConfig     Permission = "system:config"
)

// PermissionSet is a resolved set of permissions for a role.
type PermissionSet map[Permission]struct{}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func permSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// allPermissions enumerates every defined permission, used for the
// founder and security officer baselines.
var allPermissions = []Permission{
	PermClientCreate, PermClientRead, PermClientUpdate, PermClientDischarge, PermClientPHIAccess,
	PermScheduleCreate, PermScheduleRead, PermScheduleUpdate, PermScheduleDelete,
	PermEVVCreate, PermEVVRead, PermEVVUpdate, PermEVVOverride,
	PermBillingRead, PermBillingSubmit, PermBillingAdjust,
	PermPayrollRead, PermPayrollProcess,
	PermUserCreate, PermUserRead, PermUserUpdate, PermUserDeactivate,
	PermReportRead, PermReportExport,
	PermAuditRead, PermComplianceManage, PermSystemConfig,
}

var knownPermissions = func() map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		set[p] = struct{}{}
	}
	return set
}()

// Valid returns true if the permission is a known variant.
func (p Permission) Valid() bool {
	_, ok := knownPermissions[p]
	return ok
}

// rolePermissions is the role permission table: the baseline RBAC
// grant for every role, fixed at deploy time. Dynamic elevation goes
// through JIT grants and break-glass permits, never through this map.
var rolePermissions = map[Role]PermissionSet{
	RoleFounder:         permSet(allPermissions...),
	RoleSecurityOfficer: permSet(allPermissions...),
	RoleExecutiveDirector: permSet(
		PermClientRead, PermClientPHIAccess,
		PermScheduleRead,
		PermBillingRead, PermPayrollRead,
		PermUserCreate, PermUserRead, PermUserUpdate, PermUserDeactivate,
		PermReportRead, PermReportExport,
		PermAuditRead,
	),
	RoleComplianceOfficer: permSet(
		PermClientRead, PermClientPHIAccess,
		PermScheduleRead,
		PermEVVRead,
		PermBillingRead,
		PermUserRead,
		PermReportRead, PermReportExport,
		PermAuditRead, PermComplianceManage,
	),

	RoleClinicalDirector: permSet(
		PermClientCreate, PermClientRead, PermClientUpdate, PermClientDischarge, PermClientPHIAccess,
		PermScheduleCreate, PermScheduleRead, PermScheduleUpdate,
		PermEVVRead, PermEVVUpdate, PermEVVOverride,
		PermUserRead,
		PermReportRead,
	),
	RoleRegisteredNurse: permSet(
		PermClientRead, PermClientUpdate, PermClientPHIAccess,
		PermScheduleRead,
		PermEVVCreate, PermEVVRead, PermEVVUpdate,
	),
	RoleLicensedNurse: permSet(
		PermClientRead, PermClientUpdate, PermClientPHIAccess,
		PermScheduleRead,
		PermEVVCreate, PermEVVRead, PermEVVUpdate,
	),
	RoleCaregiver: permSet(
		PermClientRead,
		PermScheduleRead,
		PermEVVCreate, PermEVVRead,
	),
	RoleHomeHealthAide: permSet(
		PermClientRead,
		PermScheduleRead,
		PermEVVCreate, PermEVVRead,
	),
	RolePhysicalTherapist: permSet(
		PermClientRead, PermClientUpdate, PermClientPHIAccess,
		PermScheduleRead,
		PermEVVCreate, PermEVVRead,
	),
	RoleOccupationalTherapist: permSet(
		PermClientRead, PermClientUpdate, PermClientPHIAccess,
		PermScheduleRead,
		PermEVVCreate, PermEVVRead,
	),
	RoleSpeechTherapist: permSet(
		PermClientRead, PermClientUpdate, PermClientPHIAccess,
		PermScheduleRead,
		PermEVVCreate, PermEVVRead,
	),
	RoleSocialWorker: permSet(
		PermClientRead, PermClientUpdate, PermClientPHIAccess,
		PermScheduleRead,
	),
	RoleCaseManager: permSet(
		PermClientRead, PermClientUpdate, PermClientPHIAccess,
		PermScheduleCreate, PermScheduleRead, PermScheduleUpdate,
		PermEVVRead,
		PermReportRead,
	),

	RoleOfficeManager: permSet(
		PermClientRead,
		PermScheduleCreate, PermScheduleRead, PermScheduleUpdate, PermScheduleDelete,
		PermEVVRead,
		PermBillingRead,
		PermUserRead,
		PermReportRead,
	),
	RoleScheduler: permSet(
		PermClientRead,
		PermScheduleCreate, PermScheduleRead, PermScheduleUpdate, PermScheduleDelete,
		PermEVVRead,
	),
	RoleBiller: permSet(
		PermClientRead,
		PermEVVRead,
		PermBillingRead, PermBillingSubmit, PermBillingAdjust,
		PermReportRead,
	),
	RolePayrollSpecialist: permSet(
		PermEVVRead,
		PermPayrollRead, PermPayrollProcess,
		PermReportRead,
	),
	RoleHRManager: permSet(
		PermUserCreate, PermUserRead, PermUserUpdate, PermUserDeactivate,
		PermPayrollRead,
		PermReportRead,
	),
	RoleRecruiter: permSet(
		PermUserCreate, PermUserRead,
	),
	RoleTrainer: permSet(
		PermUserRead,
		PermScheduleRead,
	),
	RoleQAAuditor: permSet(
		PermClientRead, PermClientPHIAccess,
		PermScheduleRead,
		PermEVVRead,
		PermBillingRead,
		PermReportRead,
		PermAuditRead,
	),
	RoleIntakeCoordinator: permSet(
		PermClientCreate, PermClientRead, PermClientUpdate,
		PermScheduleRead,
	),

	RoleClient: permSet(
		PermScheduleRead,
	),
	RoleFamily: permSet(
		PermClientRead,
		PermScheduleRead,
	),
	RolePayerAuditor: permSet(
		PermEVVRead,
		PermBillingRead,
		PermReportRead,
	),
	RoleAIService: permSet(
		PermScheduleRead,
		PermEVVRead,
		PermReportRead,
	),
}

// PermissionsForRole resolves the baseline permission set for a role.
// Unknown roles resolve to an empty set, which denies everything.
func PermissionsForRole(role Role) PermissionSet {
	perms, ok := rolePermissions[role]
	if !ok {
		return PermissionSet{}
	}
	// Copy so callers cannot mutate the table.
	out := make(PermissionSet, len(perms))
	for p := range perms {
		out[p] = struct{}{}
	}
	return out
}
