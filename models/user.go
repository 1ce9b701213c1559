package models

import (
	"time"
)

// Roles assigned to a user. Students can self-register; teacher and admin
// accounts come from role-bearing invites (or a later role change by an admin).
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User 使用 UUID 字节作为 WebAuthn userHandle（存字符串即可，用时转 []byte）
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;size:255;not null" json:"username"` // email
	FullName string `gorm:"size:255;not null" json:"fullName"`
	Role     string `gorm:"size:20;not null;default:'student';index" json:"role"`

	// 档案字段：学号/工号、专业、入学年份
	IDNumber   string `gorm:"size:64" json:"idNumber,omitempty"`
	Department string `gorm:"size:120" json:"department,omitempty"`
	CohortYear int    `json:"cohortYear,omitempty"`

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:255" json:"-"`

	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Credentials []Credential
}

const UserTable = "sal_users"

func (User) TableName() string {
	return UserTable
}

// CanApprove 审批权限：只有 admin/teacher 能审批借用和验收归还
func (u *User) CanApprove() bool {
	return u.Role == RoleAdmin || u.Role == RoleTeacher
}

// Credential 为每个注册的 Passkey 存档
// CredentialID / PublicKey 为二进制，GORM 在 Postgres 下可用 bytea
type Credential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"type:uuid;index" json:"userId"`
	CredentialID    []byte    `gorm:"uniqueIndex" json:"credentialId"`
	PublicKey       []byte    `json:"publicKey"`
	AttestationType string    `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte    `gorm:"type:bytea" json:"aaguid"`
	SignCount       uint32    `json:"signCount"`
	CloneWarning    bool      `json:"cloneWarning"`
	BackupEligible  bool      `json:"backupEligible"`
	BackupState     bool      `json:"backupState"`
	TransportsJSON  string    `gorm:"type:text" json:"transportsJson"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	LastUsedAt *time.Time `gorm:"index" json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string {
	return "sal_credentials"
}
