package main

import (
	"errors"
	"fmt"
	"os"
)

// exitError carries a process exit code through the cobra call chain.
// Scheduled runs distinguish connection trouble from pass failures.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

const (
	exitConnect = 2
	exitPass    = 3
	exitConfig  = 4
)

func connectErr(err error) error { return &exitError{code: exitConnect, err: err} }
func passErr(err error) error    { return &exitError{code: exitPass, err: err} }
func configErr(err error) error  { return &exitError{code: exitConfig, err: err} }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
