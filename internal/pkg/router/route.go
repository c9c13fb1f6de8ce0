package router

// Access says who may call a route.
type Access int

const (
	// AccessPublic routes skip the auth gate.
	AccessPublic Access = iota
	// AccessAuthenticated routes need a valid, unrevoked, active token.
	AccessAuthenticated
	// AccessRoles routes additionally need one of Route.Roles.
	AccessRoles
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessAuthenticated:
		return "authenticated"
	default:
		return "roles"
	}
}

// Route is one row of a module's route table.
type Route struct {
	Method  string
	Path    string
	Access  Access
	Roles   []string
	Handler Handler
	// Status overrides 200 for successful responses, e.g. 205 on logout.
	Status int
}

// anyRole is the casbin subject that matches every authenticated caller.
const anyRole = "*"

func (rt Route) subjects() []string {
	switch rt.Access {
	case AccessAuthenticated:
		return []string{anyRole}
	case AccessRoles:
		return rt.Roles
	default:
		return nil
	}
}
