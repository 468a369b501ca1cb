package model

// Member represents a row of the `Member` table.  Password holds the
// bcrypt hash and is never serialized.
//
// Fields:
//  ID            – unique login identifier (case-sensitive).
//  Username      – display name.
//  Password      – bcrypt hash of the member's password.
//  PhoneNumber   – contact number.
//  RemainingTime – purchased but unconsumed time units.
//  UsageTime     – cumulative consumed time units.
//  LoginType     – "member" or "guest".
//  IsAdmin       – grants access to the admin endpoints.
type Member struct {
    ID            string `json:"id"`            // Member.ID
    Username      string `json:"name"`          // Member.Username
    Password      string `json:"-"`             // Member.Password
    PhoneNumber   string `json:"phone"`         // Member.PhoneNumber
    RemainingTime int    `json:"remaining_time"` // Member.RemainingTime
    UsageTime     int    `json:"usage_time"`    // Member.UsageTime
    LoginType     string `json:"login_type"`    // Member.LoginType
    IsAdmin       bool   `json:"is_admin"`      // Member.IsAdmin
}

// Role returns the JWT role claim for the member.
func (m Member) Role() string {
    if m.IsAdmin {
        return RoleAdmin
    }
    return RoleMember
}

// Role names carried in access tokens.
const (
    RoleAdmin  = "ADMIN"
    RoleMember = "MEMBER"
)

// RankEntry is one line of the usage ranking.
type RankEntry struct {
    ID       string `json:"id"`
    Name     string `json:"name"`
    UsedTime int    `json:"used_time"`
}
