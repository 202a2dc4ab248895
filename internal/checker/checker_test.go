package checker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazz-dev/uptimekit/internal/checker"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		success   bool
		elapsedMs int64
		want      checker.Status
	}{
		{true, 0, checker.StatusUp},
		{true, 999, checker.StatusUp},
		{true, 1000, checker.StatusSlow},
		{true, 4999, checker.StatusSlow},
		{true, 5000, checker.StatusDown},
		{true, 60000, checker.StatusDown},
		{false, 10, checker.StatusDown},
		{false, 0, checker.StatusDown},
		{false, 2500, checker.StatusDown},
	}
	for _, tc := range tests {
		if got := checker.Classify(tc.success, tc.elapsedMs); got != tc.want {
			t.Errorf("Classify(%v, %d) = %q, want %q", tc.success, tc.elapsedMs, got, tc.want)
		}
	}
}

func TestOutcome_Status(t *testing.T) {
	if got := checker.Succeeded(1500 * time.Millisecond).Status(); got != checker.StatusSlow {
		t.Errorf("expected slow, got %q", got)
	}
	failed := checker.Failed(20*time.Millisecond, "")
	if failed.Status() != checker.StatusDown {
		t.Errorf("expected down, got %q", failed.Status())
	}
	if failed.Err == "" {
		t.Error("expected a default error message on failure")
	}
	if ms := (checker.Outcome{Elapsed: -time.Second}).ElapsedMs(); ms != 0 {
		t.Errorf("expected negative elapsed to clamp to 0, got %d", ms)
	}
}

func TestStatusConstants(t *testing.T) {
	for _, s := range []checker.Status{checker.StatusUnknown, checker.StatusUp, checker.StatusSlow, checker.StatusDown} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if checker.Status("degraded").Valid() {
		t.Error("unexpected status accepted")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in     string
		want   checker.Type
		wantOK bool
	}{
		{"http", checker.TypeHTTP, true},
		{" DNS ", checker.TypeDNS, true},
		{"icmp", checker.TypeICMP, true},
		{"", checker.TypeHTTP, false},
		{"ftp", checker.TypeHTTP, false},
	}
	for _, tc := range tests {
		got, ok := checker.ParseType(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("ParseType(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestHostname(t *testing.T) {
	tests := map[string]string{
		"example.com":                     "example.com",
		"https://example.com/health?x=1":  "example.com",
		"http://user:pw@example.com:8080": "example.com",
		"example.com/path/to":             "example.com",
		"10.0.0.1:53":                     "10.0.0.1",
		"[::1]:80":                        "::1",
		"  8.8.8.8  ":                     "8.8.8.8",
		"":                                "",
	}
	for in, want := range tests {
		if got := checker.Hostname(in); got != want {
			t.Errorf("Hostname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeouts_For(t *testing.T) {
	var zero checker.Timeouts
	if got := zero.For(checker.TypeHTTP); got != 10*time.Second {
		t.Errorf("expected default http timeout 10s, got %v", got)
	}
	if got := zero.For(checker.TypeICMP); got != 2*time.Second {
		t.Errorf("expected default icmp timeout 2s, got %v", got)
	}
	custom := checker.Timeouts{DNS: 3 * time.Second}
	if got := custom.For(checker.TypeDNS); got != 3*time.Second {
		t.Errorf("expected dns timeout 3s, got %v", got)
	}
}

func TestNew_UnknownTypeFallsBackToHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := checker.New(checker.Type("ftp"), checker.Options{})
	out := p.Probe(context.Background(), srv.URL)
	if !out.Success {
		t.Errorf("expected unknown type to probe over HTTP, got failure %q", out.Err)
	}
}
