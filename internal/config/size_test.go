package config

import "testing"

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "1MB", want: 1048576},
		{in: "512kb", want: 512 * 1024},
		{in: "2GB", want: 2 * 1024 * 1024 * 1024},
		{in: "2048", want: 2048},
		{in: " 4 KB ", want: 4096},
		{in: "", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-5MB", wantErr: true},
		{in: "lots", wantErr: true},
		{in: "9223372036854775807GB", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
