package permission

import (
	"encoding/json"
	"sort"
)

// Access is the effective permission set of a user.
// Admins hold the all-access marker, which covers every category, including future ones.
type Access struct {
	all    bool
	grants map[string]map[string]struct{} // {category: {action}}
}

// AllAccess returns the all-access marker.
func AllAccess() Access {
	return Access{all: true}
}

// NewAccess returns the access made of exactly the given permissions.
func NewAccess(perms ...Permission) Access {
	a := Access{grants: make(map[string]map[string]struct{}, len(perms))}
	for _, p := range perms {
		actions, ok := a.grants[p.Category]
		if !ok {
			actions = make(map[string]struct{})
			a.grants[p.Category] = actions
		}
		actions[p.Action] = struct{}{}
	}
	return a
}

func (a Access) IsAllAccess() bool { return a.all }

// HasPermission reports whether a allows action in category.
func (a Access) HasPermission(category, action string) bool {
	if a.all {
		return true
	}
	_, ok := a.grants[category][action]
	return ok
}

// HasAnyPermission reports whether a allows at least one action in category.
func (a Access) HasAnyPermission(category string) bool {
	if a.all {
		return true
	}
	return len(a.grants[category]) > 0
}

// Grants returns the sorted actions per category. It is nil for all-access.
func (a Access) Grants() map[string][]string {
	if a.all {
		return nil
	}
	out := make(map[string][]string, len(a.grants))
	for category, actions := range a.grants {
		list := make([]string, 0, len(actions))
		for action := range actions {
			list = append(list, action)
		}
		sort.Strings(list)
		out[category] = list
	}
	return out
}

type accessJSON struct {
	AllAccess   bool                `json:"all_access"`
	Permissions map[string][]string `json:"permissions,omitempty"`
}

func (a Access) MarshalJSON() ([]byte, error) {
	if a.all {
		return json.Marshal(accessJSON{AllAccess: true})
	}
	grants := a.Grants()
	if grants == nil {
		grants = map[string][]string{}
	}
	return json.Marshal(struct {
		AllAccess   bool                `json:"all_access"`
		Permissions map[string][]string `json:"permissions"`
	}{Permissions: grants})
}

func (a *Access) UnmarshalJSON(data []byte) error {
	var aj accessJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	if aj.AllAccess {
		*a = AllAccess()
		return nil
	}
	perms := make([]Permission, 0, len(aj.Permissions))
	for category, actions := range aj.Permissions {
		for _, action := range actions {
			perms = append(perms, Permission{Category: category, Action: action})
		}
	}
	*a = NewAccess(perms...)
	return nil
}
