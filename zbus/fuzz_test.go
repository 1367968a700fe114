package zbus

import (
	"errors"
	"testing"
)

func FuzzDecodeFrame(f *testing.F) {
	for _, seed := range []string{
		"7_f_00000021_00000054",
		"7_f_00000000_xxxxxxxx",
		"4_x_xxxxxxxx_xxxxxxxx",
		"0_x_xxxxxxxx_xxxxxxxx",
		"5_3_DEADBEEF_00000000",
		"",
		"____",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, line string) {
		tx, err := DecodeFrame(line)
		if err != nil {
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("unexpected error class for %q: %v", line, err)
			}
			return
		}

		// a decoded frame re-encodes to a frame that decodes to the same transaction
		frame, err := EncodeFrame(tx)
		if err != nil {
			t.Fatalf("re-encode %q (%v): %v", line, tx, err)
		}
		again, err := DecodeFrame(frame)
		if err != nil {
			t.Fatalf("decode re-encoded %q: %v", frame, err)
		}
		if again != tx {
			t.Fatalf("round trip of %q: got %v, want %v", line, again, tx)
		}
	})
}

func FuzzDecodeStatus(f *testing.F) {
	for _, seed := range []string{"2xxxxxxxx", "100000054", "3deadbeef", "", "x", "1xxxx"} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, line string) {
		st, err := DecodeStatus(line)
		if err != nil {
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("unexpected error class for %q: %v", line, err)
			}
			return
		}

		if _, err := st.Payload(); err != nil && !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("unexpected payload error class for %q: %v", line, err)
		}
	})
}
