package reqlog

import (
	"fmt"
	"testing"
	"time"
)

func TestNewestFirstAndBounded(t *testing.T) {
	l := New(3)
	for i := 0; i < 5; i++ {
		l.Record(Entry{Time: time.Now(), Method: "GET", Path: fmt.Sprintf("/%d", i), Status: "Miss"})
	}

	got := l.Recent()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"/4", "/3", "/2"} {
		if got[i].Path != want {
			t.Errorf("entry %d = %s, want %s", i, got[i].Path, want)
		}
	}
}

func TestRecentReturnsACopy(t *testing.T) {
	l := New(3)
	l.Record(Entry{Path: "/a"})

	snapshot := l.Recent()
	snapshot[0].Path = "/mutated"

	if l.Recent()[0].Path != "/a" {
		t.Fatal("mutating the snapshot leaked into the log")
	}
}
