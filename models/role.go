package models

// Role represents the job function assigned to a user at creation.
// Roles are immutable; privilege beyond the role's baseline is granted
// through time-boxed attributes, never by reassigning the role.
type Role string

const (
	// Leadership / oversight roles
	RoleFounder           Role = "founder"
	RoleExecutiveDirector Role = "executive_director"
	RoleSecurityOfficer   Role = "security_officer"
	RoleComplianceOfficer Role = "compliance_officer"

	// Clinical roles
	RoleClinicalDirector      Role = "clinical_director"
	RoleRegisteredNurse       Role = "registered_nurse"
	RoleLicensedNurse         Role = "licensed_practical_nurse"
	RoleCaregiver             Role = "caregiver"
	RoleHomeHealthAide        Role = "home_health_aide"
	RolePhysicalTherapist     Role = "physical_therapist"
	RoleOccupationalTherapist Role = "occupational_therapist"
	RoleSpeechTherapist       Role = "speech_therapist"
	RoleSocialWorker          Role = "social_worker"
	RoleCaseManager           Role = "case_manager"

	// Administrative roles
	RoleOfficeManager     Role = "office_manager"
	RoleScheduler         Role = "scheduler"
	RoleBiller            Role = "biller"
	RolePayrollSpecialist Role = "payroll_specialist"
	RoleHRManager         Role = "hr_manager"
	RoleRecruiter         Role = "recruiter"
	RoleTrainer           Role = "trainer"
	RoleQAAuditor         Role = "qa_auditor"
	RoleIntakeCoordinator Role = "intake_coordinator"

	// External roles
	RoleClient       Role = "client"
	RoleFamily       Role = "family"
	RolePayerAuditor Role = "payer_auditor"
	RoleAIService    Role = "ai_service"
)

// clinicalRoles are the roles whose client access is scoped by caseload.
var clinicalRoles = map[Role]struct{}{
	RoleClinicalDirector:      {},
	RoleRegisteredNurse:       {},
	RoleLicensedNurse:         {},
	RoleCaregiver:             {},
	RoleHomeHealthAide:        {},
	RolePhysicalTherapist:     {},
	RoleOccupationalTherapist: {},
	RoleSpeechTherapist:       {},
	RoleSocialWorker:          {},
	RoleCaseManager:           {},
}

// highLevelRoles bypass pod scoping and the PHI permission gate.
var highLevelRoles = map[Role]struct{}{
	RoleFounder:           {},
	RoleSecurityOfficer:   {},
	RoleComplianceOfficer: {},
}

// IsClinical returns true if the role delivers direct care and is
// therefore subject to caseload checks on client resources.
func (r Role) IsClinical() bool {
	_, ok := clinicalRoles[r]
	return ok
}

// IsHighLevel returns true for roles with organization-wide oversight.
func (r Role) IsHighLevel() bool {
	_, ok := highLevelRoles[r]
	return ok
}

// Valid returns true if the role is a known variant.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}
