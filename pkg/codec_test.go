package shmstore

import "testing"

type codecStruct struct {
	A int
	B string
}

func TestGobCodecRoundTrip(t *testing.T) {
	c := GobCodec[codecStruct]{}
	in := codecStruct{A: 42, B: "hello"}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Fatalf("Decode = %+v, want %+v", out, in)
	}
}

func TestGobCodecScalar(t *testing.T) {
	c := GobCodec[string]{}
	b, err := c.Encode("plain")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != "plain" {
		t.Fatalf("Decode = %q, want plain", out)
	}
}
