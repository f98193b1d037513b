// Copyright 2024-2025 The OpenJProxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ojp

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/openjproxy/ojp-go/lob"
	"github.com/openjproxy/ojp-go/wire"
)

// Kind classifies driver errors. The set is closed; unknown transport
// statuses collapse into KindRemoteFailure with the original status
// attached.
type Kind int

const (
	// KindInvalidLocator: the composite locator did not parse.
	KindInvalidLocator Kind = iota + 1
	// KindNoHealthyEndpoints: no endpoint was available after recovery.
	KindNoHealthyEndpoints
	// KindTransportUnavailable: the transport reported the endpoint
	// unreachable.
	KindTransportUnavailable
	// KindTransportDeadline: the transport deadline elapsed.
	KindTransportDeadline
	// KindMessageTooLarge: the outbound size guard rejected the message
	// before it entered the transport.
	KindMessageTooLarge
	// KindRemoteFailure: the server returned a database-level error.
	KindRemoteFailure
	// KindLobReferenceMissing: a LOB write completed without a usable
	// reference.
	KindLobReferenceMissing
	// KindProtocolViolation: block framing was missing or invalid.
	KindProtocolViolation
	// KindCancelled: the caller cancelled the operation.
	KindCancelled
)

var kindName = map[Kind]string{
	KindInvalidLocator:       "invalid locator",
	KindNoHealthyEndpoints:   "no healthy endpoints",
	KindTransportUnavailable: "transport unavailable",
	KindTransportDeadline:    "transport deadline exceeded",
	KindMessageTooLarge:      "message too large",
	KindRemoteFailure:        "remote failure",
	KindLobReferenceMissing:  "lob reference missing",
	KindProtocolViolation:    "protocol violation",
	KindCancelled:            "cancelled",
}

func (k Kind) String() string {
	if s, ok := kindName[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the driver's error type. All failures surfaced by the client
// carry one, wrapping the transport or engine cause.
type Error struct {
	Kind     Kind
	Endpoint string     // address the failure is attributed to, if any
	Code     codes.Code // original transport status, for remote failures
	cause    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Endpoint != "" {
		msg = fmt.Sprintf("%s (endpoint %s)", msg, e.Endpoint)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return "ojp: " + msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the dispatcher may retry the call on another
// endpoint.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransportUnavailable || e.Kind == KindTransportDeadline
}

// KindOf extracts the Kind of a driver error, or zero for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, ep string, cause error) *Error {
	return &Error{Kind: kind, Endpoint: ep, cause: cause}
}

// mapError translates a transport-level failure into the driver taxonomy.
// The endpoint is the one the call was dispatched to.
func mapError(err error, ep string) *Error {
	var driverErr *Error
	if errors.As(err, &driverErr) {
		return driverErr
	}
	var tooLarge *wire.MessageTooLargeError
	if errors.As(err, &tooLarge) {
		return newError(KindMessageTooLarge, ep, err)
	}
	var closeErr *lob.CloseError
	if errors.As(err, &closeErr) && errors.Is(err, lob.ErrReferenceMissing) {
		return newError(KindLobReferenceMissing, ep, err)
	}
	if errors.Is(err, lob.ErrBadFrame) {
		return newError(KindProtocolViolation, ep, err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(KindCancelled, ep, err)
	}
	if s, ok := status.FromError(err); ok {
		mapped := &Error{Endpoint: ep, Code: s.Code(), cause: err}
		switch s.Code() {
		case codes.Unavailable:
			mapped.Kind = KindTransportUnavailable
		case codes.DeadlineExceeded:
			mapped.Kind = KindTransportDeadline
		case codes.Canceled:
			mapped.Kind = KindCancelled
		case codes.ResourceExhausted:
			mapped.Kind = KindMessageTooLarge
		default:
			mapped.Kind = KindRemoteFailure
		}
		return mapped
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTransportDeadline, ep, err)
	}
	return newError(KindRemoteFailure, ep, err)
}
