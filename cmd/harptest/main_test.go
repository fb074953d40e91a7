package main

import "testing"

func TestFormatReadingsMarksChipTouches(t *testing.T) {
	values := make([]int, 24)
	for i := range values {
		values[i] = 200
	}
	touched := make([]bool, 24)
	touched[11] = true      // chip 0 pin 0
	touched[12+11-3] = true // chip 1 pin 3

	got := formatReadings(values, touched)
	want := " 200*  200  200  200  200  200  200  200  200  200  200  200 |  200  200  200  200*  200  200  200  200  200  200  200  200"
	if got != want {
		t.Fatalf("got\n%q\nwant\n%q", got, want)
	}
}
