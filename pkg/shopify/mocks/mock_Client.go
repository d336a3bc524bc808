// Package mocks provides test doubles for the shopify client.
package mocks

import (
	"context"

	shopify "github.com/sells-group/vat-gateway/pkg/shopify"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// SearchCustomersByEmail provides a mock function with given fields: ctx, email
func (_m *MockClient) SearchCustomersByEmail(ctx context.Context, email string) ([]shopify.Customer, error) {
	ret := _m.Called(ctx, email)

	if len(ret) == 0 {
		panic("no return value specified for SearchCustomersByEmail")
	}

	var r0 []shopify.Customer
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]shopify.Customer, error)); ok {
		return rf(ctx, email)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []shopify.Customer); ok {
		r0 = rf(ctx, email)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]shopify.Customer)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, email)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CreateCustomer provides a mock function with given fields: ctx, in
func (_m *MockClient) CreateCustomer(ctx context.Context, in shopify.CustomerInput) (*shopify.Customer, error) {
	ret := _m.Called(ctx, in)

	if len(ret) == 0 {
		panic("no return value specified for CreateCustomer")
	}

	var r0 *shopify.Customer
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, shopify.CustomerInput) (*shopify.Customer, error)); ok {
		return rf(ctx, in)
	}
	if rf, ok := ret.Get(0).(func(context.Context, shopify.CustomerInput) *shopify.Customer); ok {
		r0 = rf(ctx, in)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*shopify.Customer)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, shopify.CustomerInput) error); ok {
		r1 = rf(ctx, in)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
