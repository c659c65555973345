package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "8192", 8192, false},
		{"decimal kb", "100KB", 100 * KB, false},
		{"decimal mb lowercase", "100mb", 100 * MB, false},
		{"binary mi", "64Mi", 64 * MiB, false},
		{"binary gib", "1GiB", GiB, false},
		{"fractional", "1.5Gi", ByteSize(1.5 * float64(GiB)), false},
		{"with spaces", " 500 Mi ", 500 * MiB, false},
		{"empty", "", 0, true},
		{"garbage", "lots", 0, true},
		{"unknown unit", "10xb", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{100 * MiB, "100.00MiB"},
		{3 * GiB, "3.00GiB"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", uint64(tt.in), got, tt.want)
		}
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("100MB")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if b != 100*MB {
		t.Fatalf("UnmarshalText = %d, want %d", b, 100*MB)
	}
	if err := b.UnmarshalText([]byte("nope")); err == nil {
		t.Fatal("UnmarshalText should fail for invalid input")
	}
}
