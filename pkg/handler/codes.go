// Package handler exposes the HTTP API of both services: room and agent
// orchestration on agentd, the memory store on memoryd.
package handler

// Stable error codes carried in the response envelope. Clients switch on
// these, not on message text.
const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeInvalidRoomName        = "INVALID_ROOM_NAME"
	CodeInvalidMaxParticipants = "INVALID_MAX_PARTICIPANTS"
	CodeInvalidEmptyTimeout    = "INVALID_EMPTY_TIMEOUT"
	CodeInvalidMetadata        = "INVALID_METADATA"
	CodeRoomNameRequired       = "ROOM_NAME_REQUIRED"
	CodeUsernameRequired       = "USERNAME_REQUIRED"
	CodeMessageRequired        = "MESSAGE_REQUIRED"

	CodeRoomExists       = "ROOM_EXISTS"
	CodeRoomNotFound     = "ROOM_NOT_FOUND"
	CodeRoomCreateFailed = "ROOM_CREATE_FAILED"
	CodeRoomListFailed   = "ROOM_LIST_FAILED"
	CodeRoomGetFailed    = "ROOM_GET_FAILED"
	CodeRoomDeleteFailed = "ROOM_DELETE_FAILED"

	CodeAgentStartFailed  = "AGENT_START_FAILED"
	CodeAgentStopFailed   = "AGENT_STOP_FAILED"
	CodeAgentStatusFailed = "AGENT_STATUS_FAILED"

	CodeTokenGenerationFailed = "TOKEN_GENERATION_FAILED"
	CodeTokenValidationFailed = "TOKEN_VALIDATION_FAILED"

	CodeMemoryStoreFailed    = "MEMORY_STORE_FAILED"
	CodeMemorySearchFailed   = "MEMORY_SEARCH_FAILED"
	CodeMemoryRetrieveFailed = "MEMORY_RETRIEVE_FAILED"
	CodeMemoryDeleteFailed   = "MEMORY_DELETE_FAILED"

	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeRequestTooLarge   = "REQUEST_TOO_LARGE"
)
