package config

import "testing"

func TestAsBool(t *testing.T) {
	cases := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"on", true, false},
		{"yes", true, false},
		{"1", true, false},
		{"TRUE", true, false},
		{"false", false, false},
		{"off", false, false},
		{"no", false, false},
		{"0", false, false},
		{"2", false, true},
		{"enabled", false, true},
		{"", false, true},
	}
	for _, tc := range cases {
		got, err := asBool(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("asBool(%q): err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("asBool(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAsSeconds(t *testing.T) {
	cases := []struct {
		in      string
		def     int
		want    int
		wantErr bool
	}{
		{"30", 0, 30, false},
		{"30s", 0, 30, false},
		{"5m", 0, 300, false},
		{"2h", 0, 7200, false},
		{"1d", 0, 86400, false},
		{"1w", 0, 604800, false},
		{"5M", 0, 300, false},
		{"", 42, 42, false},
		{"-5", 7, 7, true},
		{"5x", 7, 7, true},
		{"5mm", 7, 7, true},
		{"abc", 7, 7, true},
	}
	for _, tc := range cases {
		got, err := asSeconds(tc.in, tc.def)
		if (err != nil) != tc.wantErr {
			t.Errorf("asSeconds(%q): err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("asSeconds(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAsBytes(t *testing.T) {
	cases := []struct {
		in      string
		def     int64
		want    int64
		wantErr bool
	}{
		{"1024", 0, 1024, false},
		{"1B", 0, 1, false},
		{"2K", 0, 2048, false},
		{"2KB", 0, 2048, false},
		{"2M", 0, 2 * 1024 * 1024, false},
		{"2MB", 0, 2 * 1024 * 1024, false},
		{"1G", 0, 1024 * 1024 * 1024, false},
		{"", 99, 99, false},
		{"-1", 99, 99, true},
		{"2BB", 99, 99, true},
		{"2KX", 99, 99, true},
		{"junk", 99, 99, true},
	}
	for _, tc := range cases {
		got, err := asBytes(tc.in, tc.def)
		if (err != nil) != tc.wantErr {
			t.Errorf("asBytes(%q): err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("asBytes(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAsLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"debug", "debug1"},
		{"debug3", "debug3"},
		{"debug7", "debug5"},
		{"DEBUG2", "debug2"},
		{"info", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"loud", "info"},
	}
	for _, tc := range cases {
		if got := asLogLevel(tc.in); got != tc.want {
			t.Errorf("asLogLevel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseEndpoints(t *testing.T) {
	eps, err := parseEndpoints("http://a:5001/metrics, https://b:5002/, c:5003", false)
	if err != nil {
		t.Fatalf("parseEndpoints: %v", err)
	}
	want := []Endpoint{{"a", 5001}, {"b", 5002}, {"c", 5003}}
	if len(eps) != len(want) {
		t.Fatalf("got %d endpoints, want %d", len(eps), len(want))
	}
	for i := range want {
		if eps[i] != want[i] {
			t.Errorf("endpoint %d: got %+v, want %+v", i, eps[i], want[i])
		}
	}
}

func TestParseEndpoints_Duplicates(t *testing.T) {
	eps, err := parseEndpoints("a:5001,a:5001,http://a:5001/metrics", false)
	if err != nil {
		t.Fatalf("parseEndpoints: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("got %d endpoints, want 1", len(eps))
	}
}

func TestParseEndpoints_Invalid(t *testing.T) {
	for _, in := range []string{"a", "a:x", ":5001", "a:70000"} {
		if _, err := parseEndpoints(in, false); err == nil {
			t.Errorf("parseEndpoints(%q): expected error", in)
		}
	}
}

func TestEndpointsString(t *testing.T) {
	s := endpointsString([]Endpoint{{"a", 5001}, {"b", 5002}})
	if s != "a:5001,b:5002" {
		t.Errorf("endpointsString = %q", s)
	}
}
