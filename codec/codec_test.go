package codec

import (
	"bytes"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type product struct {
	Code  string            `json:"code" msgpack:"code" cbor:"code"`
	Price int64             `json:"price" msgpack:"price" cbor:"price"`
	Attrs map[string]string `json:"attrs" msgpack:"attrs" cbor:"attrs"`
}

func TestByNameCodecsAgree(t *testing.T) {
	in := product{Code: "SKU1", Price: 1299, Attrs: map[string]string{"color": "red"}}
	for _, name := range []string{NameJSON, NameMsgpack, NameCBOR} {
		c, ok := ByName[product](name)
		if !ok {
			t.Fatalf("%s: not found", name)
		}
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if out.Code != in.Code || out.Price != in.Price || out.Attrs["color"] != "red" {
			t.Fatalf("%s: got %+v", name, out)
		}
	}
	if _, ok := ByName[product]("xml"); ok {
		t.Fatal("unknown codec name must not resolve")
	}
}

func TestCBORDeterministicIsStable(t *testing.T) {
	c, err := NewCBOR[map[string]int](true)
	if err != nil {
		t.Fatal(err)
	}
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := c.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, _ := c.Encode(m)
		if !bytes.Equal(first, again) {
			t.Fatal("deterministic CBOR produced different bytes")
		}
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
	v, err := c.Decode([]byte("1234"))
	if err != nil || v != "1234" {
		t.Fatalf("within limit: %q %v", v, err)
	}

	unlimited := Limit[[]byte]{Inner: Bytes{}}
	if _, err := unlimited.Decode(make([]byte, 1<<16)); err != nil {
		t.Fatalf("MaxDecode 0 must disable the check: %v", err)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })
	b, err := c.Encode(wrapperspb.String("hello"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if m.GetValue() != "hello" {
		t.Fatalf("got %q", m.GetValue())
	}
	if _, err := c.Decode([]byte{0xff, 0xff}); err == nil {
		t.Fatal("expected decode error on garbage")
	}
}
