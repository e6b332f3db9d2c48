package domain

import "testing"

func TestAddress_Short(t *testing.T) {
	tests := []struct {
		addr Address
		want string
	}{
		{MustParseAddress("0x1111111111111111111111111111111111112222"), "0x1111...2222"},
		{"", "0x0000...0000"},
		{Address("0xabc"), "0xabc"},
		{Address("0x12345678ab"), "0x12345678ab"},
	}
	for _, tt := range tests {
		if got := tt.addr.Short(); got != tt.want {
			t.Errorf("Address(%q).Short() = %q, want %q", string(tt.addr), got, tt.want)
		}
	}
}
