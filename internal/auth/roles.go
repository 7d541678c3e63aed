package auth

const (
	RoleLabAssistant = "lab_assistant"
	RoleSupervisor   = "supervisor"
	RoleManager      = "manager"
)

// AllRoles is the fixed role catalogue seeded into the roles table.
var AllRoles = []string{RoleLabAssistant, RoleSupervisor, RoleManager}

// Submitters may create lab reports; Approvers may move a report into a
// terminal status.
var (
	Submitters = []string{RoleLabAssistant, RoleManager}
	Approvers  = []string{RoleSupervisor, RoleManager}
)

func KnownRole(name string) bool {
	for _, r := range AllRoles {
		if r == name {
			return true
		}
	}
	return false
}
