package role

import (
	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
)

type Role string

const (
	BendaharaOPD   Role = "bendahara_opd"
	Resepsionis    Role = "resepsionis"
	PBMD           Role = "pbmd"
	Akuntansi      Role = "akuntansi"
	Perbendaharaan Role = "perbendaharaan"
	KepalaBKAD     Role = "kepala_bkad"
	KuasaBUD       Role = "kuasa_bud"
	Administrator  Role = "administrator"
	SuperAdmin     Role = "super_admin"
)

var all = []Role{
	BendaharaOPD, Resepsionis, PBMD, Akuntansi, Perbendaharaan, KepalaBKAD, KuasaBUD, Administrator, SuperAdmin,
}

// Verifiers are the roles that own one stage of the SPM approval chain.
var Verifiers = []Role{Resepsionis, PBMD, Akuntansi, Perbendaharaan, KepalaBKAD}

func All() []Role {
	out := make([]Role, len(all))
	copy(out, all)
	return out
}

func Parse(s string) (Role, bool) {
	for _, r := range all {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

func (r Role) IsAdmin() bool {
	return r == Administrator || r == SuperAdmin
}

func (r Role) IsVerifier() bool {
	for _, v := range Verifiers {
		if v == r {
			return true
		}
	}
	return false
}

// Assignment is one (user, role, optional OPD) tuple.
type Assignment struct {
	UserID int64  `json:"user_id"`
	Role   Role   `json:"role"`
	OPDID  *int64 `json:"opd_id,omitempty"`
}

// Set is the collection of assignments a user holds.
type Set []Assignment

func (s Set) Has(r Role) bool {
	for _, a := range s {
		if a.Role == r {
			return true
		}
	}
	return false
}

func (s Set) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

func (s Set) IsAdmin() bool {
	return s.HasAny(Administrator, SuperAdmin)
}

// OPDFor returns the OPD scope of the first assignment of r that carries one.
func (s Set) OPDFor(r Role) *int64 {
	for _, a := range s {
		if a.Role == r && a.OPDID != nil {
			id := *a.OPDID
			return &id
		}
	}
	return nil
}

func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	seen := make(map[Role]bool, len(s))
	for _, a := range s {
		if seen[a.Role] {
			continue
		}
		seen[a.Role] = true
		names = append(names, string(a.Role))
	}
	return names
}

func FromDataModel(a *userDatamodel.RoleAssignment) Assignment {
	return Assignment{
		UserID: a.UserID,
		Role:   Role(a.Role),
		OPDID:  a.OPDID,
	}
}

func ToDataModel(a Assignment) *userDatamodel.RoleAssignment {
	return &userDatamodel.RoleAssignment{
		UserID: a.UserID,
		Role:   string(a.Role),
		OPDID:  a.OPDID,
	}
}
