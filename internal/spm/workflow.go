package spm

import (
	"time"

	"github.com/frahmantamala/spm-sp2d/internal/role"
)

// Stage is one row of the routing table: the role that may act while a document sits in
// From, and where approval sends it. Audit names the verified_by_/tanggal_/catatan_
// column group the stage writes.
type Stage struct {
	From        Status
	Role        role.Role
	Audit       string
	ApproveTo   Status
	Intake      bool
	RequiresPIN bool
}

// stages is the only place routing is defined. Resepsionis owns both the intake of a
// fresh submission and the verification that follows it.
var stages = []Stage{
	{From: StatusDiajukan, Role: role.Resepsionis, Audit: "resepsionis", ApproveTo: StatusResepsionisVerifikasi, Intake: true},
	{From: StatusResepsionisVerifikasi, Role: role.Resepsionis, Audit: "resepsionis", ApproveTo: StatusPBMDVerifikasi},
	{From: StatusPBMDVerifikasi, Role: role.PBMD, Audit: "pbmd", ApproveTo: StatusAkuntansiValidasi},
	{From: StatusAkuntansiValidasi, Role: role.Akuntansi, Audit: "akuntansi", ApproveTo: StatusPerbendaharaanVerifikasi},
	{From: StatusPerbendaharaanVerifikasi, Role: role.Perbendaharaan, Audit: "perbendaharaan", ApproveTo: StatusKepalaBKADReview},
	{From: StatusKepalaBKADReview, Role: role.KepalaBKAD, Audit: "kepala_bkad", ApproveTo: StatusDisetujui, RequiresPIN: true},
}

// Stages returns a copy of the routing table in workflow order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// StageFor returns the stage that acts on documents in status.
func StageFor(status Status) (Stage, bool) {
	for _, s := range stages {
		if s.From == status {
			return s, true
		}
	}
	return Stage{}, false
}

// Target is the status a document moves to when action is taken at s.
func (s Stage) Target(action Action) Status {
	if action == ActionRevise {
		return StatusPerluRevisi
	}
	return s.ApproveTo
}

// AllowedFor reports whether actingRole may act at s. Admin roles act as any stage.
func (s Stage) AllowedFor(actingRole role.Role) bool {
	return actingRole.IsAdmin() || s.Role == actingRole
}

// Final reports whether approving at s finishes the chain.
func (s Stage) Final() bool {
	return s.ApproveTo == StatusDisetujui
}

// auditUpdates are the column writes recording this visit.
func (s Stage) auditUpdates(actorID int64, at time.Time, note string) map[string]interface{} {
	updates := map[string]interface{}{
		"verified_by_" + s.Audit: actorID,
		"tanggal_" + s.Audit:     at,
	}
	if note != "" {
		updates["catatan_"+s.Audit] = note
	} else {
		updates["catatan_"+s.Audit] = nil
	}
	return updates
}

// NextRole is the role that owns the document once it reaches status, if any.
func NextRole(status Status) (role.Role, bool) {
	st, ok := StageFor(status)
	if !ok {
		return "", false
	}
	return st.Role, true
}
