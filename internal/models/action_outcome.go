package models

import "time"

// outcome kinds recorded in the public action log
const (
	OutcomeBanned   = "BANNED"
	OutcomeUnbanned = "UNBANNED"
)

// ActorAuto marks outcomes produced by reconciliation rather than a moderator command
const ActorAuto = "auto"

// ActionOutcome records one applied ban or unban action.
type ActionOutcome struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Action    string `gorm:"index;size:16;not null"`
	Username  string `gorm:"index;size:64;not null"`
	TargetSub string `gorm:"index;size:64;not null"`
	SourceSub string `gorm:"size:64"`
	Actor     string `gorm:"size:64"`
	Detail    string `gorm:"size:255"`
	CreatedAt time.Time
}
