package worker

import (
	"testing"
	"time"
)

func TestRoundDownToFiveMinutes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "mid window", in: "2025-03-10T10:07:42Z", want: "2025-03-10T10:05:00Z"},
		{name: "on boundary", in: "2025-03-10T10:05:00Z", want: "2025-03-10T10:05:00Z"},
		{name: "top of hour", in: "2025-03-10T10:00:59Z", want: "2025-03-10T10:00:00Z"},
		{name: "just before boundary", in: "2025-03-10T10:04:59Z", want: "2025-03-10T10:00:00Z"},
		{name: "end of hour", in: "2025-03-10T10:59:01Z", want: "2025-03-10T10:55:00Z"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			in, err := time.Parse(time.RFC3339, tt.in)
			if err != nil {
				t.Fatalf("parse input: %v", err)
			}
			got := RoundDownToFiveMinutes(in)
			if got.Format(time.RFC3339) != tt.want {
				t.Fatalf("RoundDownToFiveMinutes(%s) = %s, want %s", tt.in, got.Format(time.RFC3339), tt.want)
			}
		})
	}
}

func TestRoundDownKeepsLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("test", 7*3600)
	in := time.Date(2025, 3, 10, 23, 58, 30, 0, loc)
	got := RoundDownToFiveMinutes(in)
	if got.Location() != loc {
		t.Fatalf("location changed: %v", got.Location())
	}
	if got.Hour() != 23 || got.Minute() != 55 {
		t.Fatalf("got %02d:%02d, want 23:55", got.Hour(), got.Minute())
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{in: "08:00", hour: 8},
		{in: "22:30", hour: 22, minute: 30},
		{in: "00:00"},
		{in: "23:59", hour: 23, minute: 59},
		{in: "24:00", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "10", wantErr: true},
		{in: "", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}
	for _, tt := range tests {
		h, m, err := ParseHHMM(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseHHMM(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseHHMM(%q): %v", tt.in, err)
		}
		if h != tt.hour || m != tt.minute {
			t.Fatalf("ParseHHMM(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}

func TestQuietSpanHours(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		start   string
		end     string
		want    int
		wantErr bool
	}{
		{name: "overnight", start: "22:00", end: "08:00", want: 10},
		{name: "same day", start: "09:00", end: "17:00", want: 8},
		{name: "degenerate", start: "08:00", end: "08:00", want: 0},
		{name: "almost full wrap", start: "01:00", end: "00:00", want: 23},
		{name: "minutes ignored", start: "22:45", end: "08:15", want: 10},
		{name: "bad start", start: "25:00", end: "08:00", wantErr: true},
		{name: "bad end", start: "22:00", end: "8am", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := QuietSpanHours(tt.start, tt.end)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("QuietSpanHours(%q, %q): %v", tt.start, tt.end, err)
			}
			if got != tt.want {
				t.Fatalf("QuietSpanHours(%q, %q) = %d, want %d", tt.start, tt.end, got, tt.want)
			}
		})
	}
}
