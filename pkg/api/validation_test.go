package api

import (
	"strings"
	"testing"
)

func TestValidateBatch(t *testing.T) {
	cfg := ValidationConfig{MaxFragments: 3, MaxFragmentSize: 16}

	tests := []struct {
		name         string
		fragments    []Fragment
		wantErr      bool
		wantFragment int
	}{
		{
			name:      "empty batch is valid",
			fragments: nil,
		},
		{
			name:      "single fragment",
			fragments: []Fragment{"print(1+1)"},
		},
		{
			name:      "at fragment limit",
			fragments: []Fragment{"a=1", "b=2", "c=3"},
		},
		{
			name:      "over fragment limit",
			fragments: []Fragment{"a=1", "b=2", "c=3", "d=4"},
			wantErr:   true,
		},
		{
			name:         "empty fragment",
			fragments:    []Fragment{"a=1", ""},
			wantErr:      true,
			wantFragment: 2,
		},
		{
			name:         "oversized fragment",
			fragments:    []Fragment{Fragment(strings.Repeat("x", 17))},
			wantErr:      true,
			wantFragment: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.fragments, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if tt.wantFragment != 0 && err.Fragment != tt.wantFragment {
					t.Errorf("Fragment = %d, want %d", err.Fragment, tt.wantFragment)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidateBatch_DefaultsAreUnbounded(t *testing.T) {
	cfg := DefaultValidationConfig()
	fragments := make([]Fragment, 256)
	for i := range fragments {
		fragments[i] = "pass"
	}
	if err := ValidateBatch(fragments, cfg); err != nil {
		t.Fatalf("unexpected error at default limits: %v", err)
	}
}
