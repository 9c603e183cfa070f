package peer

import "testing"

func TestIsLoopback(t *testing.T) {
	cases := []struct {
		candidate string
		want      bool
	}{
		{"candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host", true},
		{"candidate:2 1 udp 2130706431 ::1 54321 typ host", true},
		{"candidate:3 1 udp 2130706431 192.168.1.10 54321 typ host", false},
		{"candidate:4 1 udp 1694498815 203.0.113.7 54321 typ srflx", false},
	}
	for _, c := range cases {
		if got := isLoopback(c.candidate); got != c.want {
			t.Errorf("isLoopback(%q) = %v, want %v", c.candidate, got, c.want)
		}
	}
}
