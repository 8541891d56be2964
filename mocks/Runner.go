package mocks

import (
	"context"

	"github.com/fep-sdk/fep-harness/process"
	"github.com/stretchr/testify/mock"
)

type Runner struct {
	mock.Mock
}

func (_m *Runner) Run(ctx context.Context, spec process.Spec) (process.Result, error) {
	args := _m.Called(ctx, spec)
	var err error
	if len(args) > 1 {
		err = args.Error(1)
	}
	return args.Get(0).(process.Result), err
}

func (_m *Runner) Start(ctx context.Context, spec process.Spec) (process.Handle, error) {
	args := _m.Called(ctx, spec)
	var err error
	if len(args) > 1 {
		err = args.Error(1)
	}
	var h process.Handle
	if args.Get(0) != nil {
		h = args.Get(0).(process.Handle)
	}
	return h, err
}

func (_m *Runner) KillByName(ctx context.Context, name, host string) {
	_m.Called(ctx, name, host)
}
