package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserSettings is the per-player settings row. The cache engine only ever
// touches LastName (the best-effort "last observed username" write after a
// profile upsert); the remaining columns belong to other plugins sharing the
// table.
type UserSettings struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	PlayerID       string    `bun:"player_id,pk,type:uuid"`
	LastName       string    `bun:"last_name,notnull,type:varchar(16)"`
	SilentStatus   bool      `bun:"silent_status,notnull,default:false"`
	HiddenStatus   int       `bun:"hidden_status,notnull,default:0"`
	VanishStatus   bool      `bun:"vanish_status,notnull,default:false"`
	LastDailyCoins time.Time `bun:"last_daily_coins,nullzero"`
}
