package session

import "github.com/sekolahmbg/mbg-client/core"

type (
	// Session is the current authentication state. At most one session is
	// current per device; a nil Session means unauthenticated.
	//
	// It is created on login, replaced wholesale on token refresh and
	// destroyed on logout or an irrecoverable 401.
	Session struct {
		Username      string    `json:"username"`
		Role          core.Role `json:"role"`
		AccessToken   string    `json:"access_token"`
		RefreshToken  string    `json:"refresh_token"`
		AccountStatus string    `json:"account_status,omitempty"`
		Profile       *Profile  `json:"profile,omitempty"`
	}

	// Profile is the embedded user fragment the backend returns on login.
	Profile struct {
		ID               string `json:"id"`
		FullName         string `json:"full_name,omitempty"`
		SchoolID         string `json:"school_id,omitempty"`
		CateringID       string `json:"catering_id,omitempty"`
		HealthOfficeArea string `json:"health_office_area,omitempty"`
	}
)

// RoleOrUnknown returns the session role, or core.RoleUnknown for a nil
// session, so base URL resolution works before authentication completes.
func (s *Session) RoleOrUnknown() core.Role {
	if s == nil {
		return core.RoleUnknown
	}
	return s.Role
}
