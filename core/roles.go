package core

// Role is the backend-assigned role carried in the session.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleAdminSekolah  Role = "admin_sekolah"
	RoleAdminCatering Role = "admin_catering"
	RoleAdminDinkes   Role = "admin_dinkes"
	RoleSiswa         Role = "siswa"

	// RoleUnknown is the absence of a session. Callers may resolve base URLs
	// before authentication completes, so an unknown role is deliberately
	// treated as eligible for everything the resolver gates on.
	RoleUnknown Role = ""
)

// Capability is a feature gate looked up per role instead of re-deriving
// eligibility with ad hoc set checks at every call site.
type Capability string

const (
	// CapUseLocalServer allows targeting a LAN school server (edge mode).
	CapUseLocalServer Capability = "use_local_server"
	// CapRecordAttendance allows submitting meal attendance.
	CapRecordAttendance Capability = "record_attendance"
	// CapManageCatering allows catering-side operations.
	CapManageCatering Capability = "manage_catering"
)

var roleCapabilities = map[Role][]Capability{
	RoleSuperAdmin:    {CapRecordAttendance, CapManageCatering},
	RoleAdminSekolah:  {CapUseLocalServer, CapRecordAttendance},
	RoleAdminCatering: {CapUseLocalServer, CapManageCatering},
	RoleAdminDinkes:   {},
	RoleSiswa:         {},
}

// HasCapability reports whether the role is granted the capability.
// RoleUnknown is granted everything; see its doc.
func (r Role) HasCapability(cap Capability) bool {
	if r == RoleUnknown {
		return true
	}
	for _, c := range roleCapabilities[r] {
		if c == cap {
			return true
		}
	}
	return false
}

// Valid reports whether the role is one the backend can hand out.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdminSekolah, RoleAdminCatering, RoleAdminDinkes, RoleSiswa:
		return true
	}
	return false
}
