package errors

import (
	stdErrors "errors"
)

// ChainDump is a flattened view of an error chain used for structured logs.
type ChainDump struct {
	Code       string
	TopMessage string
	Chain      []string
}

// Dump walks the error chain and collects every message for log fields.
func Dump(err error) ChainDump {
	dump := ChainDump{}
	if err == nil {
		return dump
	}

	dump.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		dump.Code = string(typed.Code())
	}

	for current := err; current != nil; current = stdErrors.Unwrap(current) {
		dump.Chain = append(dump.Chain, current.Error())
	}
	return dump
}
