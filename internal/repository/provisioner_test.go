package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func strategyStub(name string, err error, calls *[]string) provisionStrategy {
	return provisionStrategy{
		name: name,
		run: func(context.Context, string, uuid.UUID) error {
			*calls = append(*calls, name)
			return err
		},
	}
}

func TestProvisionStrategiesShortCircuit(t *testing.T) {
	var calls []string
	strategies := []provisionStrategy{
		strategyStub("first", nil, &calls),
		strategyStub("second", errors.New("should not run"), &calls),
	}

	if err := runProvisionStrategies(context.Background(), "data_x", uuid.New(), strategies); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("expected only first strategy to run, got %v", calls)
	}
}

func TestProvisionStrategiesFallThrough(t *testing.T) {
	var calls []string
	strategies := []provisionStrategy{
		strategyStub("ddl", errors.New("permission denied"), &calls),
		strategyStub("rpc", nil, &calls),
		strategyStub("probe", errors.New("should not run"), &calls),
	}

	if err := runProvisionStrategies(context.Background(), "data_x", uuid.New(), strategies); err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if len(calls) != 2 {
		t.Errorf("expected two strategies to run, got %v", calls)
	}
}

func TestProvisionStrategiesExhausted(t *testing.T) {
	var calls []string
	firstErr := errors.New("permission denied")
	strategies := []provisionStrategy{
		strategyStub("ddl", firstErr, &calls),
		strategyStub("rpc", errors.New("function missing"), &calls),
		strategyStub("probe", errors.New("table absent"), &calls),
	}

	err := runProvisionStrategies(context.Background(), "data_x", uuid.New(), strategies)
	if !errors.Is(err, ErrTableProvisioningFailed) {
		t.Fatalf("expected ErrTableProvisioningFailed, got %v", err)
	}
	if !errors.Is(err, firstErr) {
		t.Errorf("expected the first strategy's error to be wrapped, got %v", err)
	}
	for _, name := range []string{"ddl", "rpc", "probe"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("expected error to name strategy %q: %v", name, err)
		}
	}
	if len(calls) != 3 {
		t.Errorf("expected all strategies attempted, got %v", calls)
	}
}
