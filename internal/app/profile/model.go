package profile

type Role string

const (
	RoleNormal    Role = "normal"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

type Profile struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	Role          Role   `json:"role"`
	ActivityCount int    `json:"activity_count"`
	Banned        bool   `json:"banned"`
	Muted         bool   `json:"muted"`
}

var levelThresholds = []int{10, 50, 200, 1000}

// Level derives a 1-based level from the activity count.
func (p *Profile) Level() int {
	level := 1
	for _, threshold := range levelThresholds {
		if p.ActivityCount < threshold {
			break
		}
		level++
	}
	return level
}

// Unknown is the fallback returned when a lookup fails; it renders as an
// anonymous author and is never stored in the cache.
func Unknown(userID string) *Profile {
	return &Profile{
		UserID:      userID,
		DisplayName: "unknown",
		Role:        RoleNormal,
	}
}
