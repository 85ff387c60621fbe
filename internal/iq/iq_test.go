package iq

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []complex64{1 + 2i, -0.5 - 0.25i, 0, 3i}
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeRejectsPartialSample(t *testing.T) {
	if _, err := Decode(make([]byte, 7)); err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}
