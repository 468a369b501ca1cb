package model

// ReservedUsage marks a seat held for a member whose clock is not running.
const ReservedUsage = -1

// Seat describes a station in the venue.
//
// Fields:
//  Number    – seat number (primary key).
//  UserID    – member currently assigned, nil when free.
//  UsageTime – remaining units mirrored from the member, ReservedUsage when
//              reserved, nil when free.
type Seat struct {
    Number    int     `json:"number"`     // Seat.SeatNumber
    UserID    *string `json:"user_id"`    // Seat.UserID (nullable)
    UsageTime *int    `json:"usage_time"` // Seat.UsageTime (nullable)
}

// Free reports whether nobody is assigned to the seat.
func (s Seat) Free() bool { return s.UserID == nil || *s.UserID == "" }

// Reserved reports whether the seat is held without a running clock.
func (s Seat) Reserved() bool {
    return !s.Free() && s.UsageTime != nil && *s.UsageTime == ReservedUsage
}
