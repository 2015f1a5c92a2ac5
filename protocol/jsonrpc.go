// Package protocol defines the JSON-RPC 2.0 structures and constants for the
// wire protocol spoken with tool servers over their standard input/output.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ErrorPayload defines the structure for the 'error' object within a
// JSONRPCResponse, aligning with the JSON-RPC 2.0 specification.
type ErrorPayload struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONRPCRequest represents a standard JSON-RPC request object. Request ids
// are integers allocated by the sending client and never reused while the
// request is pending.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // MUST be "2.0"
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// JSONRPCNotification represents a one-way JSON-RPC message. Notifications
// MUST NOT carry an 'id' field and expect no response.
type JSONRPCNotification struct {
	JSONRPC string      `json:"jsonrpc"` // MUST be "2.0"
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// JSONRPCResponse represents a standard JSON-RPC response object. Exactly one
// of Result/Error is set. The ID is a pointer so a frame without an id (or
// with a null id) is distinguishable from id 0.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      *int64        `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// NewRequest creates a new JSON-RPC request object.
func NewRequest(id int64, method string, params interface{}) *JSONRPCRequest {
	return &JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// NewNotification creates a new JSON-RPC notification object.
func NewNotification(method string, params interface{}) *JSONRPCNotification {
	return &JSONRPCNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
}

// NewSuccessResponse creates a new JSON-RPC success response object.
func NewSuccessResponse(id int64, result interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      &id,
		Result:  result,
	}
}

// NewErrorResponse creates a new JSON-RPC error response object.
func NewErrorResponse(id int64, code ErrorCode, message string, data interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      &id,
		Error: &ErrorPayload{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// UnmarshalPayload re-marshals a decoded params or result field (which
// arrives as interface{}) into the specific Go struct pointed to by target.
func UnmarshalPayload(payload interface{}, target interface{}) error {
	if payload == nil {
		return fmt.Errorf("payload is nil, cannot unmarshal")
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to re-marshal payload (type %T): %w", payload, err)
	}
	if len(payloadBytes) == 0 || string(payloadBytes) == "null" {
		return fmt.Errorf("payload is nil or empty after re-marshalling")
	}
	if err := json.Unmarshal(payloadBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal payload into target type %T: %w", target, err)
	}
	return nil
}

// DecodeResult decodes a response result (an untyped map) into the struct
// pointed to by target, matching fields by their json tags. Unknown fields
// are ignored so heterogeneous third-party servers decode cleanly.
func DecodeResult(result interface{}, target interface{}) error {
	if result == nil {
		return fmt.Errorf("result is nil, cannot decode")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return fmt.Errorf("failed to create result decoder: %w", err)
	}
	if err := decoder.Decode(result); err != nil {
		return fmt.Errorf("failed to decode result into %T: %w", target, err)
	}
	return nil
}
