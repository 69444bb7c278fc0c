/*
Package solrpc contains a set of types used for JSON-RPC communication with
Solana-compatible ledger nodes. It defines basic request/response/notification
envelopes as well as the remote error type and parameter objects used by the
client for the specific requests.
*/
package solrpc

import (
	"encoding/json"
)

const (
	// JSONRPCVersion is the only JSON-RPC protocol version supported.
	JSONRPCVersion = "2.0"
)

type (
	// Request represents JSON-RPC request. Params are always passed as an
	// array, that's what every ledger method expects.
	Request struct {
		// JSONRPC is the protocol version, only valid when it contains JSONRPCVersion.
		JSONRPC string `json:"jsonrpc"`
		// Method is the method being called.
		Method string `json:"method"`
		// Params is a set of method-specific parameters passed to the call.
		Params []any `json:"params"`
		// ID is a correlation identifier associated with this request. The
		// client uses numeric identifiers that are unique per client instance.
		ID uint64 `json:"id"`
	}

	// Header is a generic JSON-RPC 2.0 response header (ID and JSON-RPC version).
	Header struct {
		ID      json.RawMessage `json:"id"`
		JSONRPC string          `json:"jsonrpc"`
	}

	// HeaderAndError adds an Error (that can be empty) to the Header.
	HeaderAndError struct {
		Header
		Error *Error `json:"error,omitempty"`
	}

	// Response represents a standard raw JSON-RPC 2.0
	// response: http://www.jsonrpc.org/specification#response_object.
	Response struct {
		HeaderAndError
		Result json.RawMessage `json:"result,omitempty"`
	}

	// Notification is a type used to represent wire format of subscription
	// events. They look like requests without ID, their "method" is an event
	// name (like "signatureNotification").
	Notification struct {
		JSONRPC string             `json:"jsonrpc"`
		Event   string             `json:"method"`
		Params  NotificationParams `json:"params"`
	}

	// NotificationParams carries the server-assigned subscription ID and the
	// event payload.
	NotificationParams struct {
		Subscription json.RawMessage `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	}
)

// IsNull checks whether the given raw JSON value is missing or null.
func IsNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
