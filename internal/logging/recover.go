package logging

import (
	"fmt"
	"runtime/debug"
)

// Recover logs a panic raised in the calling goroutine and swallows it. Use
// it deferred at the top of callbacks that must not take the process down.
//
//	defer logger.Recover("ProcessKeyEvent")
func (l *Logger) Recover(op string) {
	if r := recover(); r != nil {
		l.Error("recovered panic",
			"op", op,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)
	}
}

// RecoverErr is Recover for functions with a named error result: the panic
// becomes that error.
//
//	defer logger.RecoverErr("Enable", &err)
func (l *Logger) RecoverErr(op string, err *error) {
	if r := recover(); r != nil {
		l.Error("recovered panic",
			"op", op,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)
		if err != nil {
			*err = fmt.Errorf("%s: panic: %v", op, r)
		}
	}
}
