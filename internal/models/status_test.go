package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionItem(t *testing.T) {
	allowed := []struct{ from, to string }{
		{ItemStatusPending, ItemStatusPreparing},
		{ItemStatusPending, ItemStatusPrepared},
		{ItemStatusPending, ItemStatusServed},
		{ItemStatusPending, ItemStatusCancelled},
		{ItemStatusPreparing, ItemStatusPrepared},
		{ItemStatusPreparing, ItemStatusServed},
		{ItemStatusPreparing, ItemStatusCancelled},
		{ItemStatusPrepared, ItemStatusServed},
		{ItemStatusPrepared, ItemStatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransitionItem(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to string }{
		{ItemStatusServed, ItemStatusPreparing},
		{ItemStatusServed, ItemStatusPrepared},
		{ItemStatusServed, ItemStatusCancelled},
		{ItemStatusServed, ItemStatusPending},
		{ItemStatusCancelled, ItemStatusPending},
		{ItemStatusCancelled, ItemStatusServed},
		{ItemStatusPreparing, ItemStatusPending},
		{ItemStatusPrepared, ItemStatusPreparing},
		{ItemStatusPrepared, ItemStatusPending},
	}
	for _, tc := range denied {
		assert.False(t, CanTransitionItem(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestDeriveBatchStatus(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		current  string
		expected string
	}{
		{"all served", []string{ItemStatusServed, ItemStatusServed}, BatchStatusInProgress, BatchStatusServed},
		{"prepared and served is ready", []string{ItemStatusPrepared, ItemStatusServed}, BatchStatusPending, BatchStatusReady},
		{"all prepared is ready", []string{ItemStatusPrepared, ItemStatusPrepared}, BatchStatusPending, BatchStatusReady},
		{"any preparing is in progress", []string{ItemStatusPrepared, ItemStatusPreparing}, BatchStatusPending, BatchStatusInProgress},
		{"pending plus preparing is in progress", []string{ItemStatusPending, ItemStatusPreparing}, BatchStatusPending, BatchStatusInProgress},
		{"all pending stays pending", []string{ItemStatusPending}, BatchStatusPending, BatchStatusPending},
		{"pending plus served is pending", []string{ItemStatusPending, ItemStatusServed}, BatchStatusPending, BatchStatusPending},
		{"cancelled items are ignored", []string{ItemStatusCancelled, ItemStatusServed}, BatchStatusPending, BatchStatusServed},
		{"all cancelled keeps prior status", []string{ItemStatusCancelled, ItemStatusCancelled}, BatchStatusInProgress, BatchStatusInProgress},
		{"no items keeps prior status", nil, BatchStatusReady, BatchStatusReady},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveBatchStatus(tc.items, tc.current))
		})
	}
}

func TestIsTerminalSessionStatus(t *testing.T) {
	assert.True(t, IsTerminalSessionStatus(SessionStatusPaid))
	assert.True(t, IsTerminalSessionStatus(SessionStatusCancelled))
	assert.True(t, IsTerminalSessionStatus(SessionStatusVoid))
	assert.False(t, IsTerminalSessionStatus(SessionStatusOpen))
	assert.False(t, IsTerminalSessionStatus(SessionStatusBilled))
}
