package domain

import (
	"time"

	"github.com/google/uuid"
)

// Fixed XP amounts granted by battle flows
const (
	XPAcceptBonus    = 50
	XPProgressUpdate = 10
	XPBattleWin      = 500
)

// XPTransaction is one entry in the rewards ledger. The ledger is append-only;
// a user's XP total is the running sum mirrored onto User.XP.
type XPTransaction struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	Amount    int       `json:"amount" gorm:"not null"`
	Reason    string    `json:"reason" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}
