package session

import (
	"fmt"

	"github.com/cifranet/cifra/wire"
)

// Role identifies which state machine produced an error.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Stage identifies which step of the exchange failed. Stages follow the
// protocol's message order.
type Stage string

const (
	StageValidate Stage = "validate"
	StageParReq   Stage = "par_req"
	StageParConf  Stage = "par_conf"
	StageEncrypt  Stage = "encrypt"
	StageDados    Stage = "dados"
	StageConf     Stage = "conf"
)

// Error is a protocol-level exchange failure. Transport failures are never
// wrapped in it; they surface as errors matching transport.ErrConnectionBroken.
type Error struct {
	Role  Role
	Stage Stage
	Code  wire.Code
	// Supported carries the peer's capability advertisement when the
	// exchange was rejected with a Lista message.
	Supported []wire.ListaEntry
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Role, e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Role, e.Stage, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func protoErr(role Role, stage Stage, code wire.Code, err error) *Error {
	return &Error{Role: role, Stage: stage, Code: code, Err: err}
}
