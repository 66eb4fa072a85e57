package payment

import (
	"errors"
	"testing"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "plain code", content: "4200012345", want: "4200012345"},
		{name: "code in transfer noise", content: "MBVCB.123 CT tu 0123 4200012345 thanh toan", want: "4200012345"},
		{name: "bank glues prefix text", content: "CK4200012345KHAM", want: "4200012345"},
		{name: "eleven digit run is not a code", content: "ref 42000123456 x", wantErr: true},
		{name: "first of two codes wins", content: "4200012345 then 9900055555", want: "4200012345"},
		{name: "no digits", content: "thanh toan kham benh", wantErr: true},
		{name: "short run", content: "ma 420001234", wantErr: true},
		{name: "code at end", content: "noi dung: 4200012345", want: "4200012345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCode(tt.content)
			if tt.wantErr {
				if !errors.Is(err, ErrCodeMissing) {
					t.Fatalf("ExtractCode(%q) error = %v, want ErrCodeMissing", tt.content, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractCode(%q) unexpected error: %v", tt.content, err)
			}
			if got != tt.want {
				t.Fatalf("ExtractCode(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}
