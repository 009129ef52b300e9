// Package mocks provides gomock implementations of the interfaces the auth
// flow depends on.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// MockExchanger stands in for the backend code exchange.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=exchanger_mock.go github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/providers Exchanger
