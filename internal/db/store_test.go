package db

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestIsTransientConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization sqlstate", errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)"), true},
		{"deadlock sqlstate", errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), true},
		{"serialization message only", errors.New("could not serialize access due to read/write dependencies among transactions"), true},
		{"deadlock message only", errors.New("deadlock detected"), true},
		{"unique violation", errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"), false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), false},
		{"plain error", errors.New("record not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientConflict(tt.err); got != tt.want {
				t.Errorf("isTransientConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm sentinel", gorm.ErrDuplicatedKey, true},
		{"pg unique violation", errors.New(`ERROR: duplicate key value violates unique constraint "memehub_follows_pkey" (SQLSTATE 23505)`), true},
		{"sqlstate only", errors.New("SQLSTATE 23505"), true},
		{"serialization failure", errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)"), false},
		{"plain error", errors.New("record not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateKey(tt.err); got != tt.want {
				t.Errorf("isDuplicateKey(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
