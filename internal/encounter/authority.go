package encounter

import (
	"errors"

	"github.com/danteprogrammer/clinica-core/internal/booking"
)

// Role is the actor role carried on each transition request. There is no
// ambient session state: authorization is a pure lookup per request.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleReceptionist Role = "RECEPCIONISTA"
	RoleTriage       Role = "TRIAJE"
	RoleDoctor       Role = "MEDICO"
	RoleLab          Role = "LABORATORIO"
	RoleCashier      Role = "CAJA"
)

var ErrNotAuthorized = errors.New("role not permitted for this transition")

var knownRoles = map[Role]struct{}{
	RoleAdmin:        {},
	RoleReceptionist: {},
	RoleTriage:       {},
	RoleDoctor:       {},
	RoleLab:          {},
	RoleCashier:      {},
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := knownRoles[r]; !ok {
		return "", ErrNotAuthorized
	}
	return r, nil
}

// eventRoles is the fixed authorization matrix.
var eventRoles = map[Event]map[Role]struct{}{
	EventConfirm:            {RoleReceptionist: {}},
	EventCheckIn:            {RoleTriage: {}},
	EventBeginConsultation:  {RoleDoctor: {}},
	EventOrderLab:           {RoleDoctor: {}},
	EventLabCompleted:       {RoleLab: {}},
	EventFinishConsultation: {RoleDoctor: {}},
	EventPay:                {RoleCashier: {}},
	EventCancel:             {RoleAdmin: {}, RoleReceptionist: {}},
}

// Authorize decides whether role may fire ev from state. Pure function;
// consulted before any mutation. Reception may cancel only before clinical
// work begins; admin may cancel from any state.
func Authorize(role Role, from booking.Status, ev Event) bool {
	if _, ok := eventRoles[ev][role]; !ok {
		return false
	}
	if ev == EventCancel && role == RoleReceptionist {
		return from == booking.StatusPending || from == booking.StatusConfirmed
	}
	return true
}
