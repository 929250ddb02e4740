package database

import "time"

// The club schema predates gorm conventions: singular PascalCase table names
// and "<entity>_uid" primary keys.

// Membership is a club membership account
type Membership struct {
	MembershipUID    int64     `gorm:"column:membership_uid;primaryKey;autoIncrement" json:"membership_uid"`
	MembershipNumber string    `gorm:"column:membership_number;size:32" json:"membership_number"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Membership) TableName() string { return "Membership" }

// QuintessUser is a back-office staff login
type QuintessUser struct {
	QuintessUserUID int64  `gorm:"column:quintess_user_uid;primaryKey;autoIncrement" json:"quintess_user_uid"`
	Login           string `gorm:"column:login;size:64" json:"login"`
	DisplayName     string `gorm:"column:display_name;size:128" json:"display_name"`
}

func (QuintessUser) TableName() string { return "QuintessUser" }

// Member is a person attached to one or more memberships
type Member struct {
	MemberUID int64  `gorm:"column:member_uid;primaryKey;autoIncrement" json:"member_uid"`
	FirstName string `gorm:"column:first_name;size:64" json:"first_name"`
	LastName  string `gorm:"column:last_name;size:64" json:"last_name"`
}

func (Member) TableName() string { return "Member" }

// MembershipContract is a signed contract belonging to a membership
type MembershipContract struct {
	MembershipContractUID int64  `gorm:"column:membership_contract_uid;primaryKey;autoIncrement" json:"membership_contract_uid"`
	MembershipUID         int64  `gorm:"column:membership_uid;index" json:"membership_uid"`
	ContractNumber        string `gorm:"column:contract_number;size:32" json:"contract_number"`
}

func (MembershipContract) TableName() string { return "MembershipContract" }

// MemberMembership pairs a member with a membership
type MemberMembership struct {
	MemberMembershipUID int64 `gorm:"column:member_membership_uid;primaryKey;autoIncrement" json:"member_membership_uid"`
	MemberUID           int64 `gorm:"column:member_uid;index" json:"member_uid"`
	MembershipUID       int64 `gorm:"column:membership_uid;index" json:"membership_uid"`
}

func (MemberMembership) TableName() string { return "MemberMembership" }
