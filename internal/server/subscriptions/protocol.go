// Package subscriptions serves GraphQL subscriptions over WebSocket using the
// graphql-transport-ws protocol. Every subscribe message re-reads the session
// and re-resolves the caller, so a long-lived socket never reuses an identity
// captured when it connected.
package subscriptions

import "encoding/json"

// Protocol is the negotiated WebSocket subprotocol.
const Protocol = "graphql-transport-ws"

// Message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// Close codes.
const (
	closeBadRequest   = 4400
	closeUnauthorized = 4401
	closeBadProtocol  = 4406
	closeInitTimeout  = 4408
	closeDuplicateID  = 4409
	closeTooManyInits = 4429
)

type message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type initPayload struct {
	Authorization string `json:"authorization"`
}

type subscribePayload struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Extensions    struct {
		Authorization string `json:"authorization"`
	} `json:"extensions"`
}

type errorMessage struct {
	Message string `json:"message"`
}
