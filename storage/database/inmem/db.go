// Package inmemdb provides in-memory repository implementations used by
// unit tests and local tooling.
package inmemdb

import (
	"sync"

	"github.com/shulehq/shule/core/attendance"
	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/child"
	"github.com/shulehq/shule/core/identity"
	"github.com/shulehq/shule/core/relationship"
	"github.com/shulehq/shule/core/school"
	"github.com/shulehq/shule/core/user"
)

type (
	DB struct {
		account    *accountTable
		user       *userTable
		school     *schoolTable
		classroom  *classroomTable
		child      *childTable
		link       *linkTable
		assignment *assignmentTable
		attendance *attendanceTable
		audit      *auditTable
	}

	accountTable struct {
		sync.RWMutex
		table map[string]*identity.Account
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		table map[string]*school.School
	}

	classroomTable struct {
		sync.RWMutex
		table map[string]*school.Classroom
	}

	childTable struct {
		sync.RWMutex
		table map[string]*child.Child
	}

	linkTable struct {
		sync.RWMutex
		table map[string]*relationship.ParentLink
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*relationship.TeacherAssignment
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Record
	}

	auditTable struct {
		sync.RWMutex
		table map[string]*audit.Entry
	}
)

func Open() (*DB, error) {
	db := &DB{
		account:    &accountTable{table: make(map[string]*identity.Account)},
		user:       &userTable{table: make(map[string]*user.User)},
		school:     &schoolTable{table: make(map[string]*school.School)},
		classroom:  &classroomTable{table: make(map[string]*school.Classroom)},
		child:      &childTable{table: make(map[string]*child.Child)},
		link:       &linkTable{table: make(map[string]*relationship.ParentLink)},
		assignment: &assignmentTable{table: make(map[string]*relationship.TeacherAssignment)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Record)},
		audit:      &auditTable{table: make(map[string]*audit.Entry)},
	}
	return db, nil
}
