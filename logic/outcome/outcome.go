// Package outcome converts the (checksum, error) pairs returned by the
// deploy engine into the JSON payload the CLI entrypoint prints. This is a
// reporting concern only: it never feeds back into engine behavior.
package outcome

import (
	"errors"

	json "github.com/goccy/go-json"

	"github.com/gurre/xdgapp-deploy/logic/ref"
	"github.com/gurre/xdgapp-deploy/state/xdgerr"
)

// Kind mirrors xdgerr.Kind plus the successful "OK" case, as its JSON
// string form.
type Kind string

const (
	OK                Kind = "OK"
	AlreadyDeployed   Kind = "AlreadyDeployed"
	AlreadyUndeployed Kind = "AlreadyUndeployed"
	Validation        Kind = "Validation"
	IO                Kind = "IO"
	Store             Kind = "Store"
	Cancelled         Kind = "Cancelled"
	Unknown           Kind = "Unknown"
)

// Outcome is the JSON shape reported after deploy/undeploy/prune.
type Outcome struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message,omitempty"`
	Ref      string `json:"ref,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

var kindNames = map[xdgerr.Kind]Kind{
	xdgerr.AlreadyDeployed:   AlreadyDeployed,
	xdgerr.AlreadyUndeployed: AlreadyUndeployed,
	xdgerr.Validation:        Validation,
	xdgerr.IO:                IO,
	xdgerr.Store:             Store,
	xdgerr.Cancelled:         Cancelled,
}

// Build reports a successful operation.
func Build(r ref.Ref, checksum string) Outcome {
	return Outcome{Kind: OK, Ref: r.String(), Checksum: checksum}
}

// BuildFromError classifies err (an *xdgerr.Error when the engine produced
// it, any other error otherwise) into an Outcome.
func BuildFromError(r ref.Ref, checksum string, err error) Outcome {
	o := Outcome{Ref: r.String(), Checksum: checksum}
	if err == nil {
		o.Kind = OK
		return o
	}
	o.Message = err.Error()

	var xerr *xdgerr.Error
	if errors.As(err, &xerr) {
		if kind, ok := kindNames[xerr.Kind]; ok {
			o.Kind = kind
			return o
		}
	}
	o.Kind = Unknown
	return o
}

// JSON marshals o to its wire form.
func (o Outcome) JSON() (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
