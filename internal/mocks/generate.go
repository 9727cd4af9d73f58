// Package mocks contains generated mocks for the core collaborator ports.
package mocks

//go:generate go run go.uber.org/mock/mockgen -destination=capability_gate_mock.go -package=mocks github.com/sproutlog/sproutlog/internal/core CapabilityGate
//go:generate go run go.uber.org/mock/mockgen -destination=event_reader_mock.go -package=mocks github.com/sproutlog/sproutlog/internal/core EventReader
