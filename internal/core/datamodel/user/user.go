package user

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	Name         string    `gorm:"column:name;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Phone        *string   `gorm:"column:phone"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// OPD is an organisational unit (Organisasi Perangkat Daerah).
type OPD struct {
	ID        int64     `gorm:"primaryKey"`
	Kode      string    `gorm:"column:kode;uniqueIndex;not null"`
	Nama      string    `gorm:"column:nama;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OPD) TableName() string {
	return "opd"
}

type RoleAssignment struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	Role      string    `gorm:"column:role;not null;index"`
	OPDID     *int64    `gorm:"column:opd_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (RoleAssignment) TableName() string {
	return "user_roles"
}
