package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
	"github.com/frahmantamala/spm-sp2d/internal/role"
)

// Profile is what a signed-in user sees about themselves.
type Profile struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Phone     *string    `json:"phone,omitempty"`
	IsActive  bool       `json:"is_active"`
	Roles     []RoleView `json:"roles"`
	CreatedAt time.Time  `json:"created_at"`
}

type RoleView struct {
	Role    role.Role `json:"role"`
	OPDID   *int64    `json:"opd_id,omitempty"`
	OPDKode string    `json:"opd_kode,omitempty"`
	OPDNama string    `json:"opd_nama,omitempty"`
}

type OPD struct {
	ID   int64  `json:"id"`
	Kode string `json:"kode"`
	Nama string `json:"nama"`
}

func FromDataModel(u *userDatamodel.User) *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		IsActive:  u.IsActive,
		Roles:     []RoleView{},
		CreatedAt: u.CreatedAt,
	}
}

func OPDFromDataModel(o *userDatamodel.OPD) OPD {
	return OPD{ID: o.ID, Kode: o.Kode, Nama: o.Nama}
}
