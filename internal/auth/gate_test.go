package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	admin := &Principal{ID: 1, Role: RoleAdmin}
	student := &Principal{ID: 2, Role: RoleStudent}

	cases := []struct {
		name      string
		principal *Principal
		required  []Role
		want      bool
	}{
		{"nil principal denied", nil, []Role{RoleAdmin}, false},
		{"role in set", admin, []Role{RoleAdmin, RoleDepartmentHead}, true},
		{"role not in set", student, []Role{RoleAdmin, RoleDepartmentHead}, false},
		{"empty set denies", admin, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Allowed(tc.principal, tc.required))
		})
	}
}

func TestCanModify(t *testing.T) {
	creator := &Principal{ID: 7, Role: RoleTeacher}
	head := &Principal{ID: 8, Role: RoleDepartmentHead}
	other := &Principal{ID: 9, Role: RoleTeacher}

	require.True(t, CanModify(creator, 7, RoleAdmin, RoleDepartmentHead))
	require.True(t, CanModify(head, 7, RoleAdmin, RoleDepartmentHead))
	require.False(t, CanModify(other, 7, RoleAdmin, RoleDepartmentHead))
	require.False(t, CanModify(nil, 7, RoleAdmin))

	// The creator keeps write access regardless of role.
	student := &Principal{ID: 7, Role: RoleStudent}
	require.True(t, CanModify(student, 7))
}

func TestValidRole(t *testing.T) {
	for _, role := range AllRoles() {
		require.True(t, ValidRole(role))
	}
	require.False(t, ValidRole(Role("superuser")))
}

func TestTeachingRole(t *testing.T) {
	require.True(t, RoleTeacher.TeachingRole())
	require.True(t, RoleDepartmentHead.TeachingRole())
	require.False(t, RoleAdmin.TeachingRole())
	require.False(t, RoleStudent.TeachingRole())
}
