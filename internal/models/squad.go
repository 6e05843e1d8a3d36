package models

import "time"

// SquadMemberRole defines a member's role in a squad.
type SquadMemberRole string

const (
	// SquadRoleOwner is the squad owner role.
	SquadRoleOwner SquadMemberRole = "owner"
	// SquadRoleMember is the default member role.
	SquadRoleMember SquadMemberRole = "member"
)

// Squad is a community users publish posts into.
type Squad struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Handle    string    `gorm:"size:40;not null;uniqueIndex" json:"handle"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Thumbnail string    `json:"thumbnail"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Squad) TableName() string {
	return "squads"
}

// SquadMember maps users to squads. Only members may post into a squad.
type SquadMember struct {
	SquadID   uint            `gorm:"primaryKey;autoIncrement:false" json:"squad_id"`
	UserID    uint            `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Role      SquadMemberRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (SquadMember) TableName() string {
	return "squad_members"
}
