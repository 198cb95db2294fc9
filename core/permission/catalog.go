package permission

// Categories of the default catalog.
const (
	CategoryStudents      = "students"
	CategoryTeachers      = "teachers"
	CategoryClasses       = "classes"
	CategoryGrades        = "grades"
	CategoryFinance       = "finance"
	CategoryMessages      = "messages"
	CategoryAnnouncements = "announcements"
	CategoryReports       = "reports"
	CategoryDocuments     = "documents"
	CategoryUsers         = "users"
	CategorySubscriptions = "subscriptions"
	CategoryPermissions   = "permissions"
)

// Actions of the default catalog.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"
	ActionSend   = "send"
	ActionExport = "export"
)

var crud = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

var catalog = []struct {
	category string
	label    string
	actions  []string
}{
	{CategoryStudents, "students", crud},
	{CategoryTeachers, "teachers", crud},
	{CategoryClasses, "classes", crud},
	{CategoryGrades, "grades", crud},
	{CategoryFinance, "fees and payments", crud},
	{CategoryMessages, "messages", []string{ActionRead, ActionSend, ActionDelete}},
	{CategoryAnnouncements, "announcements", crud},
	{CategoryReports, "reports", []string{ActionRead, ActionExport}},
	{CategoryDocuments, "documents", crud},
	{CategoryUsers, "user accounts", crud},
	{CategorySubscriptions, "the school subscription", []string{ActionRead, ActionManage}},
	{CategoryPermissions, "staff permissions", []string{ActionRead, ActionManage}},
}

// DefaultCatalog returns the permissions every deployment starts with.
func DefaultCatalog() []NewPermission {
	perms := make([]NewPermission, 0, 48)
	for _, c := range catalog {
		for _, action := range c.actions {
			perms = append(perms, NewPermission{
				Category:    c.category,
				Action:      action,
				Description: action + " " + c.label,
			})
		}
	}
	return perms
}
