// internal/nilm/ring_test.go
package nilm

import (
	"math"
	"testing"
)

func TestNewPowerRing_Invalid(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := NewPowerRing(capacity); err != ErrInvalidCapacity {
			t.Errorf("capacity %d: expected ErrInvalidCapacity, got: %v", capacity, err)
		}
	}
}

func TestPowerRing_FillAndWrap(t *testing.T) {
	const capacity = 5

	r, err := NewPowerRing(capacity)
	if err != nil {
		t.Fatalf("NewPowerRing failed: %v", err)
	}

	if r.Full() {
		t.Error("new ring reports full")
	}
	if r.Cap() != capacity {
		t.Errorf("Cap() = %d, want %d", r.Cap(), capacity)
	}

	for i := 1; i <= capacity-1; i++ {
		r.Push(float64(i))
		if r.Full() {
			t.Fatalf("ring full after %d of %d pushes", i, capacity)
		}
		if r.Len() != i {
			t.Fatalf("Len() = %d after %d pushes", r.Len(), i)
		}
	}

	r.Push(5)
	if !r.Full() {
		t.Fatal("ring not full after capacity pushes")
	}

	// Mean of 1..5
	if got := r.Mean(); math.Abs(got-3) > 1e-15 {
		t.Errorf("Mean() = %v, want 3", got)
	}

	// Overwrite the oldest: 1 is replaced by 11, mean of {11,2,3,4,5}.
	r.Push(11)
	if !r.Full() {
		t.Error("full flag cleared by wrap-around")
	}
	if r.Len() != capacity {
		t.Errorf("Len() after wrap = %d, want %d", r.Len(), capacity)
	}
	if got := r.Mean(); math.Abs(got-5) > 1e-15 {
		t.Errorf("Mean() after wrap = %v, want 5", got)
	}
}

func TestPowerRing_MeanBeforeFull(t *testing.T) {
	r, err := NewPowerRing(10)
	if err != nil {
		t.Fatalf("NewPowerRing failed: %v", err)
	}

	if got := r.Mean(); got != 0 {
		t.Errorf("empty ring Mean() = %v, want 0", got)
	}

	r.Push(4)
	r.Push(8)
	if got := r.Mean(); math.Abs(got-6) > 1e-15 {
		t.Errorf("partial ring Mean() = %v, want 6", got)
	}
}

func TestPowerRing_Reset(t *testing.T) {
	r, err := NewPowerRing(3)
	if err != nil {
		t.Fatalf("NewPowerRing failed: %v", err)
	}

	for i := 0; i < 7; i++ {
		r.Push(float64(i))
	}
	r.Reset()

	if r.Full() || r.Len() != 0 || r.Mean() != 0 {
		t.Errorf("after Reset: full=%v len=%d mean=%v", r.Full(), r.Len(), r.Mean())
	}
}
