// Package types holds the wire-level types shared between the wallet
// daemon and its callers.
package types

import "encoding/json"

// TxBuilderConfig is the fee/gas configuration a transaction-building
// request asks the user to confirm or amend.
type TxBuilderConfig struct {
	AccountNumber uint64 `json:"account_number"`
	Sequence      uint64 `json:"sequence"`
	Gas           uint64 `json:"gas"`
	Fee           string `json:"fee"`
	Memo          string `json:"memo"`
}

// SignPayload is the pending data behind a sign request: what message is
// awaiting consent and for which address.
type SignPayload struct {
	Address    string `json:"address"`
	MessageHex string `json:"message_hex"`
}

// AddressEntry is one record in the keeper's address book.
type AddressEntry struct {
	Address      string `json:"address"`
	Path         string `json:"path"`
	RemoteLinked bool   `json:"remote_linked"`
}

// Envelope is the transport-level request: which route owns the message,
// its type tag and the raw payload.
type Envelope struct {
	Route   string          `json:"route"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorBody is the structured error returned to callers.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Response is the transport-level reply: exactly one of Payload or Error.
type Response struct {
	Payload any        `json:"payload,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}
