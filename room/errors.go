/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

// Kind groups errors by what the caller did wrong.
type Kind int

const (
	KindValidation Kind = iota
	KindAuthorization
	KindConflict
	KindExhausted
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindExhausted:
		return "exhausted"
	default:
		return "internal"
	}
}

// Error is returned by every room operation. Reason is a short
// machine-checkable code sent back to clients as-is.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind and reason so wrapped copies still compare equal
// to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	ErrInvalidSettings = newError(KindValidation, "invalid_settings")
	ErrInvalidTeam     = newError(KindValidation, "invalid_team")
	ErrEmptyText       = newError(KindValidation, "empty_text")
	ErrTextTooLong     = newError(KindValidation, "text_too_long")
	ErrInvalidTarget   = newError(KindValidation, "invalid_target")

	ErrNotHost         = newError(KindAuthorization, "not_host")
	ErrNotClueGiver    = newError(KindAuthorization, "not_cluegiver")
	ErrNotActiveTeam   = newError(KindAuthorization, "not_active_team")
	ErrNotOfferedToYou = newError(KindAuthorization, "not_offered_to_you")
	ErrNotInRoom       = newError(KindAuthorization, "not_in_room")
	ErrInvalidToken    = newError(KindAuthorization, "invalid_token")
	ErrCannotKickSelf  = newError(KindAuthorization, "cannot_kick_self")

	ErrRoomNotFound       = newError(KindConflict, "room_not_found")
	ErrNoActiveRound      = newError(KindConflict, "no_active_round")
	ErrRoundRunning       = newError(KindConflict, "round_already_running")
	ErrWrongStatus        = newError(KindConflict, "wrong_status")
	ErrNoOffer            = newError(KindConflict, "no_offer")
	ErrOfferStatus        = newError(KindConflict, "offer_wrong_status")
	ErrTileNotFound       = newError(KindConflict, "tile_not_found")
	ErrTileGuessed        = newError(KindConflict, "tile_already_guessed")
	ErrPlayerNotFound     = newError(KindConflict, "player_not_found")
	ErrTargetNotConnected = newError(KindConflict, "target_not_connected")
	ErrNoCandidates       = newError(KindConflict, "no_connected_players")

	ErrBoardUnavailable = newError(KindExhausted, "board_unavailable")

	ErrInternal = newError(KindInternal, "internal_error")
)

func wrap(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Reason: sentinel.Reason, Err: err}
}
