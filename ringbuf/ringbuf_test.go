package ringbuf

import "testing"

func TestDistanceIncrementDecrement(t *testing.T) {
	l := Layout{Begin: 0x10, End: 0x100}
	size := l.End - l.Begin
	for p := l.Begin; p < l.End; p += 7 {
		for n := uint32(0); n <= size; n += 11 {
			inc := Increment(l, p, n)
			var want uint32
			if n == 0 {
				want = size
			} else {
				want = n
			}
			if got := Distance(l, p, inc, Full); got != want {
				t.Fatalf("Distance(p=%x, inc(p,%d)=%x, Full) = %d, want %d", p, n, inc, got, want)
			}
			if back := Decrement(l, inc, n); back != p {
				t.Fatalf("Decrement(Increment(%x,%d),%d) = %x, want %x", p, n, n, back, p)
			}
		}
	}
}

func TestDistanceEmptyMode(t *testing.T) {
	l := Layout{Begin: 0, End: 0x100}
	if d := Distance(l, 0x50, 0x50, Empty); d != 0 {
		t.Fatalf("Empty mode from==to: got %d want 0", d)
	}
	if d := Distance(l, 0x50, 0x50, Full); d != l.End-l.Begin {
		t.Fatalf("Full mode from==to: got %d want %d", d, l.End-l.Begin)
	}
}

func TestReaderBackwardWrap(t *testing.T) {
	l := Layout{Begin: 0, End: 16}
	mem := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	read := func(addr uint32, buf []byte) error {
		copy(buf, mem[addr:addr+uint32(len(buf))])
		return nil
	}
	var prog Progress
	prog.Maximum = 100
	r := NewReader(l, read, 3, Backward, 4, &prog)
	got, err := r.Next(8)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{12, 13, 14, 15, 0, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d (got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
	if prog.Current != 8 {
		t.Fatalf("progress: got %d want 8", prog.Current)
	}
}

func TestReaderForward(t *testing.T) {
	l := Layout{Begin: 0, End: 16}
	mem := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	read := func(addr uint32, buf []byte) error {
		copy(buf, mem[addr:addr+uint32(len(buf))])
		return nil
	}
	r := NewReader(l, read, 5, Forward, 14, nil)
	got, err := r.Next(6)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{14, 15, 0, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
		}
	}
}
