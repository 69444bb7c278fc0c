package solrpc

import (
	"encoding/json"
	"fmt"
)

// Error is a structured JSON-RPC 2.0 error returned by the remote endpoint.
// It's a deterministic application-level failure, resending the same request
// yields the same error.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 and well-known ledger node error codes.
const (
	ParseErrorCode     = -32700
	InvalidRequestCode = -32600
	MethodNotFoundCode = -32601
	InvalidParamsCode  = -32602
	InternalErrorCode  = -32603

	// BlockCleanedUpCode is returned for requests about pruned blocks.
	BlockCleanedUpCode = -32001
	// PreflightFailureCode is returned by sendTransaction when the
	// transaction simulation fails.
	PreflightFailureCode = -32002
	// SignatureVerificationFailureCode is returned by sendTransaction for
	// badly signed transactions.
	SignatureVerificationFailureCode = -32003
	// NodeUnhealthyCode is returned when the node is behind the cluster.
	NodeUnhealthyCode = -32005
	// BlockhashNotFoundCode is returned when the transaction refers to an
	// unknown (expired) blockhash.
	BlockhashNotFoundCode = -32016
)

// NewError is an Error constructor that takes Error contents from its
// parameters.
func NewError(code int64, message string, data json.RawMessage) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if IsNull(e.Data) {
		return fmt.Sprintf("%s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%d) - %s", e.Message, e.Code, string(e.Data))
}

// Is denotes whether the error matches the target one by code.
func (e *Error) Is(target error) bool {
	clTarget, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == clTarget.Code
}
