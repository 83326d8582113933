// Package mocks provides test doubles for the llm package.
package mocks

import (
	"context"

	llm "github.com/sells-group/esg-research/internal/llm"
	mock "github.com/stretchr/testify/mock"
)

// MockCompleter is a mock type for the Completer interface.
type MockCompleter struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, req
func (_m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Result, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Complete")
	}

	var r0 *llm.Result
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, llm.Request) (*llm.Result, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, llm.Request) *llm.Result); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*llm.Result)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, llm.Request) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CompleteJSON provides a mock function with given fields: ctx, req, out
func (_m *MockCompleter) CompleteJSON(ctx context.Context, req llm.Request, out interface{}) (*llm.Result, error) {
	ret := _m.Called(ctx, req, out)

	if len(ret) == 0 {
		panic("no return value specified for CompleteJSON")
	}

	var r0 *llm.Result
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, llm.Request, interface{}) (*llm.Result, error)); ok {
		return rf(ctx, req, out)
	}
	if rf, ok := ret.Get(0).(func(context.Context, llm.Request, interface{}) *llm.Result); ok {
		r0 = rf(ctx, req, out)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*llm.Result)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, llm.Request, interface{}) error); ok {
		r1 = rf(ctx, req, out)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockCompleter creates a new instance of MockCompleter. It also registers
// a testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockCompleter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCompleter {
	m := &MockCompleter{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
