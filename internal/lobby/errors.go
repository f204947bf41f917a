package lobby

import (
	"errors"
	"fmt"
)

// Error codes returned by Coordinator operations.
const (
	CodeUnauthenticated          = "unauthenticated"
	CodeNoHeroSelected           = "no_hero_selected"
	CodeInvalidMode              = "invalid_mode"
	CodeNoActiveSlots            = "no_active_slots"
	CodeInsufficientRoleCapacity = "insufficient_role_capacity"
	CodeCodeGenerationFailed     = "code_generation_failed"
	CodeRoomNotFound             = "room_not_found"
	CodeSeatNotFound             = "seat_not_found"
	CodeAlreadyInRoom            = "already_in_room"
	CodeSeatAlreadyTaken         = "seat_already_taken"
	CodeSeatNotOwned             = "seat_not_owned"
	CodeNotHost                  = "not_host"
	CodeNotSeated                = "not_seated"
	CodeHostStillActive          = "host_still_active"
	CodeNotAllFilled             = "not_all_filled"
	CodeNotAllReady              = "not_all_ready"
	CodeRoomNotOpen              = "room_not_open"
	CodeInternal                 = "internal"
)

var messages = map[string]string{
	CodeUnauthenticated:          "로그인이 필요합니다.",
	CodeNoHeroSelected:           "먼저 캐릭터를 선택해주세요.",
	CodeInvalidMode:              "지원하지 않는 방 모드입니다.",
	CodeNoActiveSlots:            "활성화된 슬롯이 없습니다.",
	CodeInsufficientRoleCapacity: "선택한 역할의 슬롯이 부족합니다.",
	CodeCodeGenerationFailed:     "방 코드를 생성하지 못했습니다. 다시 시도해주세요.",
	CodeRoomNotFound:             "방을 찾을 수 없습니다.",
	CodeSeatNotFound:             "슬롯을 찾을 수 없습니다.",
	CodeAlreadyInRoom:            "이미 다른 방에 참여 중입니다.",
	CodeSeatAlreadyTaken:         "이미 다른 참가자가 선택한 슬롯입니다.",
	CodeSeatNotOwned:             "내 슬롯이 아닙니다.",
	CodeNotHost:                  "방장만 할 수 있습니다.",
	CodeNotSeated:                "방에 참여 중인 참가자만 할 수 있습니다.",
	CodeHostStillActive:          "방장이 아직 활동 중입니다.",
	CodeNotAllFilled:             "모든 슬롯이 채워지지 않았습니다.",
	CodeNotAllReady:              "모든 참가자가 준비되지 않았습니다.",
	CodeRoomNotOpen:              "이미 시작된 방입니다.",
	CodeInternal:                 "요청을 처리하지 못했습니다. 잠시 후 다시 시도해주세요.",
}

// Error is the failure result of a Coordinator operation. Message is safe to
// show to players; Err keeps the underlying cause for infrastructure
// failures.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code string) *Error {
	return &Error{Code: code, Message: messages[code]}
}

// NewError builds an Error for code with its player-facing message, for
// transports that reject a request before it reaches the Coordinator.
func NewError(code string) *Error {
	return newError(code)
}

// Code extracts the error code of err, "ok" for nil and internal for
// anything that is not an *Error.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternal
}
