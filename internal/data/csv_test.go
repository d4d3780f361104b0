package data

import (
	"strings"
	"testing"
)

func TestParseValidRows(t *testing.T) {
	l := NewCSVLoader(nil)
	csv := "timestamp,open,high,low,close,volume\n" +
		"1000,10,11,9,10.5,100\n" +
		"1060,10.5,11.5,10,11,120\n"
	result, err := l.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(result.Bars))
	}
	if result.Bars[0].Timestamp != 1000 {
		t.Fatalf("expected first timestamp 1000, got %d", result.Bars[0].Timestamp)
	}
}

func TestParseSkipsMalformedRows(t *testing.T) {
	l := NewCSVLoader(nil)
	csv := "timestamp,open,high,low,close,volume\n" +
		"1000,10,11,9,10.5,100\n" +
		"not-a-number,10,11,9,10.5,100\n" +
		"1060,10.5,11.5,10,11,120\n"
	result, err := l.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Bars) != 2 {
		t.Fatalf("expected 2 valid bars, got %d", len(result.Bars))
	}
	if result.MalformedRows != 1 {
		t.Fatalf("expected 1 malformed row, got %d", result.MalformedRows)
	}
}

func TestParseSkipsImpossibleOHLC(t *testing.T) {
	l := NewCSVLoader(nil)
	csv := "timestamp,open,high,low,close,volume\n" +
		"1000,10,5,9,10.5,100\n" + // high < open: impossible
		"1060,10.5,11.5,10,11,120\n"
	result, err := l.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Bars) != 1 {
		t.Fatalf("expected 1 valid bar, got %d", len(result.Bars))
	}
	if result.ImpossibleOHLC != 1 {
		t.Fatalf("expected 1 impossible-OHLC row, got %d", result.ImpossibleOHLC)
	}
}

func TestParseEmptyInputYieldsZeroBars(t *testing.T) {
	l := NewCSVLoader(nil)
	result, err := l.Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Bars) != 0 {
		t.Fatalf("expected zero bars for empty input, got %d", len(result.Bars))
	}
}

func TestParseHeaderOnlyYieldsZeroBars(t *testing.T) {
	l := NewCSVLoader(nil)
	result, err := l.Parse(strings.NewReader("timestamp,open,high,low,close,volume\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Bars) != 0 {
		t.Fatalf("expected zero bars for header-only input, got %d", len(result.Bars))
	}
}

func TestParseCivilTimeTimestamp(t *testing.T) {
	l := NewCSVLoader(nil)
	csv := "timestamp,open,high,low,close,volume\n" +
		"2024-01-01 00:00:00,10,11,9,10.5,100\n"
	result, err := l.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(result.Bars))
	}
	if result.Bars[0].Timestamp <= 0 {
		t.Fatalf("expected positive epoch timestamp, got %d", result.Bars[0].Timestamp)
	}
}
