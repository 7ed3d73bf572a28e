package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchIdxParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1:0:d=2026080300:APCP:surface:0-6 hour acc fcst\n" +
			"2:523412:d=2026080300:UGRD:10 m above ground:6 hour fcst\n" +
			"3:612004:d=2026080300:VGRD:10 m above ground:6 hour fcst\n"))
	}))
	defer srv.Close()

	entries, err := fetchIdx(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetchIdx: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[1].Offset != 523412 {
		t.Errorf("entries[1].Offset = %d, want 523412", entries[1].Offset)
	}
}

func TestFetchIdxEmptyIsDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(""))
	}))
	defer srv.Close()

	_, err := fetchIdx(context.Background(), srv.Client(), srv.URL)
	if err == nil {
		t.Fatal("expected error for empty idx")
	}
}

func TestSearchIdxByteRange(t *testing.T) {
	entries := []idxEntry{
		{Offset: 0, Description: "APCP:surface"},
		{Offset: 100, Description: "UGRD:10 m above ground"},
		{Offset: 250, Description: "VGRD:10 m above ground"},
	}

	start, end, found := searchIdxByteRange(entries, func(d string) bool {
		return d == "UGRD:10 m above ground"
	})
	if !found {
		t.Fatal("expected match")
	}
	if start != 100 || end != 249 {
		t.Errorf("got range [%d, %d], want [100, 249]", start, end)
	}

	start, end, found = searchIdxByteRange(entries, func(d string) bool {
		return d == "VGRD:10 m above ground"
	})
	if !found {
		t.Fatal("expected match")
	}
	if start != 250 || end != -1 {
		t.Errorf("got range [%d, %d], want [250, -1] (open-ended)", start, end)
	}

	_, _, found = searchIdxByteRange(entries, func(d string) bool { return d == "nope" })
	if found {
		t.Fatal("expected no match")
	}
}

func TestRangeHeader(t *testing.T) {
	if got := rangeHeader(10, 20); got != "bytes=10-20" {
		t.Errorf("rangeHeader(10, 20) = %q", got)
	}
	if got := rangeHeader(10, -1); got != "bytes=10-" {
		t.Errorf("rangeHeader(10, -1) = %q", got)
	}
}
