package auth

const (
	RoleAdmin      = "admin"
	RoleHR         = "hr"
	RoleAccountant = "accountant"
	RoleEmployee   = "employee"
)

const (
	PermEmployeesRead   = "core.employees.read"
	PermEmployeesWrite  = "core.employees.write"
	PermPayrollRead     = "payroll.read"
	PermPayrollWrite    = "payroll.write"
	PermPayrollRun      = "payroll.run"
	PermPayrollFinalize = "payroll.finalize"
	PermFiscalRead      = "fiscal.read"
	PermFiscalWrite     = "fiscal.write"
	PermFiscalAdmin     = "fiscal.admin"
	PermReportsRead     = "reports.read"
	PermSystemAdmin     = "admin.system"
)

var DefaultPermissions = []string{
	PermEmployeesRead,
	PermEmployeesWrite,
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollRun,
	PermPayrollFinalize,
	PermFiscalRead,
	PermFiscalWrite,
	PermFiscalAdmin,
	PermReportsRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermPayrollRead,
	},
	RoleAccountant: {
		PermEmployeesRead,
		PermPayrollRead,
		PermFiscalRead,
		PermFiscalWrite,
		PermFiscalAdmin,
		PermReportsRead,
	},
	RoleHR: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
		PermPayrollFinalize,
		PermFiscalRead,
		PermReportsRead,
	},
	RoleAdmin: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
		PermPayrollFinalize,
		PermFiscalRead,
		PermFiscalWrite,
		PermFiscalAdmin,
		PermReportsRead,
		PermSystemAdmin,
	},
}

// HasPermission checks the static role grants. Admin implicitly holds every
// permission through its grant list, not through a wildcard.
func HasPermission(role, permission string) bool {
	for _, granted := range RolePermissions[role] {
		if granted == permission {
			return true
		}
	}
	return false
}
