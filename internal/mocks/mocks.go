// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kv9x/dowser-cli/api/schemas"
)

// -- Page Mock --

// MockPage mocks the schemas.Page collaborator for expectation-driven tests.
// Scenario tests use FakeItemsApp instead.
type MockPage struct {
	mock.Mock
}

var _ schemas.Page = (*MockPage)(nil)

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockPage) QueryAll(ctx context.Context, selector, scope string) ([]schemas.ElementInfo, error) {
	args := m.Called(ctx, selector, scope)
	var elements []schemas.ElementInfo
	if v := args.Get(0); v != nil {
		elements = v.([]schemas.ElementInfo)
	}
	return elements, args.Error(1)
}

func (m *MockPage) Fill(ctx context.Context, selector, scope, value string) error {
	args := m.Called(ctx, selector, scope, value)
	return args.Error(0)
}

func (m *MockPage) Click(ctx context.Context, selector, scope string) error {
	args := m.Called(ctx, selector, scope)
	return args.Error(0)
}

func (m *MockPage) SelectOptionAt(ctx context.Context, selector, scope string, index int) error {
	args := m.Called(ctx, selector, scope, index)
	return args.Error(0)
}

func (m *MockPage) PressKey(ctx context.Context, selector, scope, key string) error {
	args := m.Called(ctx, selector, scope, key)
	return args.Error(0)
}

func (m *MockPage) SubmitForm(ctx context.Context, scope string) error {
	args := m.Called(ctx, scope)
	return args.Error(0)
}

func (m *MockPage) BodyText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) MarkRowScope(ctx context.Context, needle string) (string, error) {
	args := m.Called(ctx, needle)
	return args.String(0), args.Error(1)
}

func (m *MockPage) AcceptDialogs(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// -- HTTP Client Mock --

// MockHTTPClient mocks the schemas.HTTPClient collaborator.
type MockHTTPClient struct {
	mock.Mock
}

var _ schemas.HTTPClient = (*MockHTTPClient)(nil)

func (m *MockHTTPClient) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*schemas.HTTPResponse, error) {
	args := m.Called(ctx, method, url, headers, body)
	var resp *schemas.HTTPResponse
	if v := args.Get(0); v != nil {
		resp = v.(*schemas.HTTPResponse)
	}
	return resp, args.Error(1)
}
