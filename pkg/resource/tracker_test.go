package resource

import (
	"testing"
	"time"

	"github.com/iGentAI/ferrous/pkg/errors"
)

func TestInstructionBudget(t *testing.T) {
	tr := New(Limits{MaxInstructions: 5, CheckInterval: 1})
	var err error
	for i := 0; i < 10; i++ {
		if err = tr.CountInstruction(); err != nil {
			break
		}
	}
	if err == nil {
		t.Fatalf("expected instruction budget to trip")
	}
	if _, ok := err.(*errors.ResourceLimitError); !ok {
		t.Fatalf("expected ResourceLimitError, got %T", err)
	}
}

func TestCallDepthBudget(t *testing.T) {
	tr := New(Limits{MaxCallDepth: 2})
	if err := tr.EnterCall(); err != nil {
		t.Fatal(err)
	}
	if err := tr.EnterCall(); err != nil {
		t.Fatal(err)
	}
	if err := tr.EnterCall(); err == nil {
		t.Fatalf("expected call depth limit to trip on third nested call")
	}
	tr.ExitCall()
	tr.ExitCall()
}

func TestKillFlag(t *testing.T) {
	tr := New(Limits{CheckInterval: 1})
	tr.Kill()
	err := tr.CountInstruction()
	if err == nil {
		t.Fatalf("expected kill flag to abort execution")
	}
	if _, ok := err.(*errors.Aborted); !ok {
		t.Fatalf("expected Aborted, got %T", err)
	}
}

func TestTimeout(t *testing.T) {
	tr := New(Limits{Timeout: time.Millisecond, CheckInterval: 1})
	time.Sleep(5 * time.Millisecond)
	err := tr.CountInstruction()
	if err == nil {
		t.Fatalf("expected timeout to trip")
	}
}

func TestUnboundedWhenZero(t *testing.T) {
	tr := New(Limits{})
	for i := 0; i < 5000; i++ {
		if err := tr.CountInstruction(); err != nil {
			t.Fatalf("unexpected error with no limits configured: %v", err)
		}
	}
}
