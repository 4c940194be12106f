package validation

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		region  string
		want    string
		wantErr bool
	}{
		{name: "international", phone: "+7 912 345-67-89", want: "+79123456789"},
		{name: "national with region", phone: "8 (912) 345-67-89", region: "RU", want: "+79123456789"},
		{name: "lower case region", phone: "(202) 456-1111", region: "us", want: "+12024561111"},
		{name: "national without region", phone: "9123456789", wantErr: true},
		{name: "too short", phone: "+7 12", wantErr: true},
		{name: "letters", phone: "call me", region: "RU", wantErr: true},
		{name: "empty", phone: "  ", region: "RU", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.phone, tt.region)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("NormalizePhone(%q) error = %v, want ErrInvalid", tt.phone, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone(%q) unexpected error: %v", tt.phone, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.phone, got, tt.want)
			}
		})
	}
}
