package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKey is a stored credential: one secret bound to one provider, with its
// own usage counter, lock window and priority.
type APIKey struct {
	gorm.Model
	Provider string `gorm:"not null;index" json:"provider"`
	Secret   string `gorm:"type:text;not null" json:"-"`
	Label    string `json:"label"`

	// Usage is tokens consumed inside the current rolling window.
	Usage int64 `gorm:"not null;default:0" json:"usage"`
	// Limit is the per-window token budget; 0 means unlimited.
	Limit          int64      `gorm:"not null;default:0" json:"limit"`
	LastUsageReset *time.Time `json:"last_usage_reset,omitempty"`

	// LockedUntil makes the key ineligible while in the future, regardless
	// of IsActive.
	LockedUntil *time.Time `gorm:"index" json:"locked_until,omitempty"`

	IsActive bool `gorm:"not null;default:true;index" json:"is_active"`
	Priority int  `gorm:"not null;default:0" json:"priority"`
}

// Remaining reports how many tokens are left in the window. Unlimited keys
// report MaxRemaining.
func (k APIKey) Remaining() int64 {
	if k.Limit <= 0 {
		return MaxRemaining
	}
	return k.Limit - k.Usage
}

// Locked reports whether the key is inside a lock window at now.
func (k APIKey) Locked(now time.Time) bool {
	return k.LockedUntil != nil && now.Before(*k.LockedUntil)
}

// MaxRemaining stands in for "no limit" when ordering by remaining quota.
const MaxRemaining = int64(1) << 62
