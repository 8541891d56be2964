package mocks

import (
	"github.com/fep-sdk/fep-harness/process"
	"github.com/stretchr/testify/mock"
)

type Handle struct {
	mock.Mock
}

func (_m *Handle) Wait() (process.Result, error) {
	args := _m.Called()
	var err error
	if len(args) > 1 {
		err = args.Error(1)
	}
	return args.Get(0).(process.Result), err
}

func (_m *Handle) Terminate() error {
	args := _m.Called()
	return args.Error(0)
}

func (_m *Handle) PrintableCommandArgs() string {
	args := _m.Called()
	return args.String(0)
}
