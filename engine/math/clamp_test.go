package math

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		name         string
		v, low, high uint32
		want         uint32
	}{
		{"inside", 640, 1, 4096, 640},
		{"below", 0, 1, 4096, 1},
		{"above", 8000, 1, 4096, 4096},
		{"inverted range", 5, 10, 2, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.low, tt.high); got != tt.want {
				t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.low, tt.high, got, tt.want)
			}
		})
	}
	if got := Clamp(1.5, 0.0, 1.0); got != 1.0 {
		t.Errorf("Clamp(1.5, 0, 1) = %f", got)
	}
}
