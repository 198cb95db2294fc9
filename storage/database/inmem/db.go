package inmemdb

import (
	"sync"
	"time"

	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/school"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
)

// DB is an in-memory store used by tests and local demos.
type (
	DB struct {
		user         *userTable
		school       *schoolTable
		plan         *planTable
		subscription *subscriptionTable
		permission   *permissionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		table map[string]*school.School
	}

	planTable struct {
		sync.RWMutex
		table map[string]*plan.Plan
	}

	// subscriptionTable is keyed by school ID.
	subscriptionTable struct {
		sync.RWMutex
		table map[string]*subscription.Subscription
	}

	permissionTable struct {
		sync.RWMutex
		table  map[string]*permission.Permission
		grants map[string]map[string]time.Time // user ID -> permission ID -> granted at
	}
)

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		school:       &schoolTable{table: make(map[string]*school.School)},
		plan:         &planTable{table: make(map[string]*plan.Plan)},
		subscription: &subscriptionTable{table: make(map[string]*subscription.Subscription)},
		permission: &permissionTable{
			table:  make(map[string]*permission.Permission),
			grants: make(map[string]map[string]time.Time),
		},
	}
}
