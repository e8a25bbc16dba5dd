package auth

// Role names of the default catalog, lowest first
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleModerator  = "moderator"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Capabilities gating the administrative endpoints
const (
	CapabilityManagePermissions = "manage:permissions"
	CapabilityViewUserActivity  = "view:user_activity"
	CapabilityManageAllUsers    = "manage:all_users"
)

// CapabilityDefinition is a catalog entry
type CapabilityDefinition struct {
	Name        string
	Description string
}

// RoleDefinition is a role and its full baseline capability list
type RoleDefinition struct {
	Name         string
	Description  string
	Capabilities []string
}

// Catalog is the bootstrap set of roles and capabilities
type Catalog struct {
	Capabilities []CapabilityDefinition
	Roles        []RoleDefinition
}

var studentCapabilities = []CapabilityDefinition{
	{"read:courses", "Can list available courses"},
	{"read:course_details", "Can view course details"},
	{"enroll:courses", "Can enroll in courses"},
	{"access:course_content", "Can access content of enrolled courses"},
	{"manage:own_profile", "Can edit their own profile"},
	{"read:own_progress", "Can view their course progress"},
	{"delete:own_account", "Can delete their own account"},
	{"comment:resources", "Can comment on resources"},
	{"star:resources", "Can star resources"},
	{"unstar:resources", "Can remove stars from resources"},
	{"report:resources", "Can report inappropriate resources"},
	{"read:learning_paths", "Can list learning paths"},
	{"comment:learning_paths", "Can comment on learning paths"},
	{"star:learning_paths", "Can star learning paths"},
	{"unstar:learning_paths", "Can remove stars from learning paths"},
	{"report:learning_paths", "Can report learning paths"},
	{"create:resources", "Can create resources"},
	{"edit:resources", "Can edit resources"},
	{"delete:resources", "Can delete resources"},
	{"publish:resources", "Can publish resources"},
}

var instructorCapabilities = []CapabilityDefinition{
	{"create:courses", "Can create courses"},
	{"edit:courses", "Can edit courses"},
	{"delete:courses", "Can delete courses"},
	{"publish:courses", "Can publish courses"},
	{"archive:courses", "Can archive courses"},
	{"restore:courses", "Can restore archived courses"},
	{"assign:instructors", "Can assign instructors to courses"},
	{"manage:course_reviews", "Can manage course reviews"},
	{"archive:resources", "Can archive resources"},
	{"restore:resources", "Can restore archived resources"},
	{"create:learning_paths", "Can create learning paths"},
	{"edit:learning_paths", "Can edit learning paths"},
	{"delete:learning_paths", "Can delete learning paths"},
	{"publish:learning_paths", "Can publish learning paths"},
	{"archive:learning_paths", "Can archive learning paths"},
	{"restore:learning_paths", "Can restore archived learning paths"},
	{"instructor:manage_own_courses", "Can manage their own courses"},
	{"instructor:view_students", "Can view students enrolled in their courses"},
}

var moderatorCapabilities = []CapabilityDefinition{
	{"moderate:content", "Can approve or reject user generated content"},
	{"delete:content", "Can delete user generated content"},
	{"view:reports", "Can view user and content reports"},
	{"resolve:reports", "Can act on reports"},
	{"ban:users", "Can ban users"},
	{"mute:users", "Can mute users temporarily"},
}

var adminCapabilities = []CapabilityDefinition{
	{"admin:manage_all", "Can manage everything in the system"},
	{"admin:view_sensitive_data", "Can view sensitive account data"},
	{"manage:roles", "Can manage roles"},
	{CapabilityManagePermissions, "Can grant and block capabilities"},
	{"change:passwords", "Can change account passwords"},
	{"block:users", "Can block accounts"},
	{"unblock:users", "Can unblock accounts"},
	{"suspend:users", "Can suspend accounts"},
	{"activate:users", "Can reactivate suspended accounts"},
	{"manage:system_settings", "Can change system settings"},
	{CapabilityManageAllUsers, "Can manage every account, including forced logout"},
	{"reset:passwords", "Can reset account passwords"},
	{CapabilityViewUserActivity, "Can view account activity and sessions"},
	{"view:analytics", "Can view analytics"},
	{"audit:logs", "Can read audit logs"},
	{"read:resources", "Can view available resources"},
	{"manage:resources", "Can manage resources"},
	{"manage:comments", "Can manage comments"},
}

var superAdminCapabilities = []CapabilityDefinition{
	{"superadmin:full_access", "Unrestricted access"},
	{"superadmin:delete_system", "Can delete the whole system"},
}

// DefaultCatalog returns the hierarchical role catalog. Each role carries
// the capabilities of every role below it.
func DefaultCatalog() Catalog {
	tiers := []struct {
		name        string
		description string
		caps        []CapabilityDefinition
	}{
		{RoleStudent, "Platform student", studentCapabilities},
		{RoleInstructor, "Course instructor", instructorCapabilities},
		{RoleModerator, "Community moderator", moderatorCapabilities},
		{RoleAdmin, "System administrator", adminCapabilities},
		{RoleSuperAdmin, "Super administrator with full access", superAdminCapabilities},
	}

	var catalog Catalog
	seen := map[string]bool{}
	var inherited []string

	for _, tier := range tiers {
		for _, c := range tier.caps {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			catalog.Capabilities = append(catalog.Capabilities, c)
			inherited = append(inherited, c.Name)
		}
		caps := make([]string, len(inherited))
		copy(caps, inherited)
		catalog.Roles = append(catalog.Roles, RoleDefinition{
			Name:         tier.name,
			Description:  tier.description,
			Capabilities: caps,
		})
	}

	return catalog
}
