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

// Package policy evaluates a CEL expression against an incoming DHCP
// request to decide whether the session should admit it to the backend
// chain at all. Adapted from the teacher's pkg/filter, which filters
// Kubernetes Device objects by a CEL expression over device attributes;
// here the "attributes" map is built from the decoded request instead.
package policy

import (
	"fmt"
	"net"

	"github.com/google/cel-go/cel"
	celtypes "github.com/google/cel-go/common/types"
	"k8s.io/klog/v2"

	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

// NewProgram compiles expr into a CEL program evaluated against a
// request's attributes: mac (string), vendor_class (string),
// requested_options (list of int), message_type (string).
func NewProgram(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("mac", cel.StringType),
		cel.Variable("vendor_class", cel.StringType),
		cel.Variable("requested_options", cel.ListType(cel.IntType)),
		cel.Variable("message_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: building CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy: compiling %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("policy: building CEL program: %w", err)
	}
	return prg, nil
}

// Admit evaluates program against req and returns whether the request
// should be processed. Evaluation errors are logged and fail open (the
// request is admitted), matching pkg/filter.FilterDevices's
// fall-through-on-error behavior.
func Admit(program cel.Program, peer net.Addr, req *dhcpv4.Message) bool {
	if program == nil {
		return true
	}
	vendorClass, _ := req.ClassIdentifier()
	var requestedOptions []int64
	for _, code := range req.RequestedOptions() {
		requestedOptions = append(requestedOptions, int64(code))
	}
	messageType := ""
	if mt, ok := req.MessageType(); ok {
		messageType = mt.String()
	}

	out, _, err := program.Eval(map[string]interface{}{
		"mac":               req.ClientHwAddr.String(),
		"vendor_class":      vendorClass,
		"requested_options": requestedOptions,
		"message_type":      messageType,
	})
	if err != nil {
		klog.Errorf("policy: evaluating admission filter for %s: %v", req.ClientHwAddr, err)
		return true
	}
	admit, ok := out.(celtypes.Bool)
	if !ok {
		klog.Errorf("policy: admission filter for %s did not return a bool: %v", req.ClientHwAddr, out)
		return true
	}
	return bool(admit)
}
