package auth

// Permission constants define the available permissions in the system.
// Each one is seeded as a permissions row and attached to roles.
const (
	// PermDashboardView allows viewing the dashboard counters.
	PermDashboardView = "dashboard.view"

	// PermBcrRead allows listing and viewing business change requests.
	PermBcrRead = "bcr.read"
	// PermBcrWrite allows creating BCRs and moving them through the workflow.
	PermBcrWrite = "bcr.write"

	// PermSubmissionRead allows viewing submissions.
	PermSubmissionRead = "submission.read"
	// PermSubmissionReview allows reviewing, deleting and reinstating submissions.
	PermSubmissionReview = "submission.review"

	// PermRefDataRead allows viewing reference data items and values.
	PermRefDataRead = "refdata.read"
	// PermRefDataWrite allows editing reference data and managing restore points.
	PermRefDataWrite = "refdata.write"

	// PermFundingRead allows viewing funding rates and their history.
	PermFundingRead = "funding.read"
	// PermFundingWrite allows editing funding rates.
	PermFundingWrite = "funding.write"

	// PermReleaseRead allows viewing academic years, releases and release notes.
	PermReleaseRead = "release.read"
	// PermReleaseWrite allows managing academic years, releases and release notes.
	PermReleaseWrite = "release.write"

	// PermAdminUsers allows managing user accounts.
	PermAdminUsers = "admin.users"
	// PermAdminRoles allows managing roles and their permissions.
	PermAdminRoles = "admin.roles"
	// PermAdminSettings allows managing SLA thresholds and impacted areas.
	PermAdminSettings = "admin.settings"
	// PermAdminAudit allows reading the audit log.
	PermAdminAudit = "admin.audit"
)

// AllPermissions lists every permission name in display order.
func AllPermissions() []string {
	return []string{
		PermDashboardView,
		PermBcrRead, PermBcrWrite,
		PermSubmissionRead, PermSubmissionReview,
		PermRefDataRead, PermRefDataWrite,
		PermFundingRead, PermFundingWrite,
		PermReleaseRead, PermReleaseWrite,
		PermAdminUsers, PermAdminRoles, PermAdminSettings, PermAdminAudit,
	}
}
