/*
Copyright 2025 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dhcpv4

import "fmt"

// Error is a DHCP protocol/allocation/policy error that carries a status
// code alongside its message, so a session handler can turn it directly
// into a StatusCode option on a Nak response.
type Error struct {
	Code    StatusCode
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.String()
}

// NewError builds an Error with the given code and a formatted message.
func NewError(code StatusCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Convenience constructors for the taxonomy named in spec.md §7. Each
// maps directly onto an IANA status code; anything else surfaces as
// UnspecFail.
func ErrNoAddrsAvailable(format string, args ...any) *Error {
	return NewError(StatusNoAddrsAvail, format, args...)
}

func ErrNotAllowed(format string, args ...any) *Error {
	return NewError(StatusNotAllowed, format, args...)
}

func ErrNotSupported(format string, args ...any) *Error {
	return NewError(StatusNotSupported, format, args...)
}

func ErrMalformedQuery(format string, args ...any) *Error {
	return NewError(StatusMalformedQuery, format, args...)
}

func ErrUnknownQueryType(format string, args ...any) *Error {
	return NewError(StatusUnknownQueryType, format, args...)
}

func ErrAddressInUse(format string, args ...any) *Error {
	return NewError(StatusAddressInUse, format, args...)
}
