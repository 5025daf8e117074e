package server

import (
	"bytes"
	"context"
	"testing"
)

func TestDispatcherRoutesByType(t *testing.T) {
	d := NewDispatcher()
	var gotName string
	d.Register("fit", HandlerFunc(func(_ context.Context, req Request) (Response, error) {
		gotName = req.Name
		return Response{Status: StatusSuccess}, nil
	}))

	resp, err := d.Handle(context.Background(), Request{Type: "fit", Name: "churn_model"})
	if err != nil {
		t.Fatalf("Handle: %s", err)
	}
	if resp.Status != StatusSuccess {
		t.Fatalf("Status = %q, want %q", resp.Status, StatusSuccess)
	}
	if gotName != "churn_model" {
		t.Fatalf("handler saw Name = %q, want %q", gotName, "churn_model")
	}
}

func TestDispatcherUnknownType(t *testing.T) {
	d := NewDispatcher()
	if _, err := d.Handle(context.Background(), Request{Type: "nope"}); err == nil {
		t.Fatal("expected an error for an unregistered request type")
	}
}

func TestLineFramerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := LineFramer{}
	if err := f.WriteFrame(&buf, []byte(`{"type_":"fit"}`)); err != nil {
		t.Fatalf("WriteFrame: %s", err)
	}
	if err := f.WriteFrame(&buf, []byte(`{"type_":"transform"}`)); err != nil {
		t.Fatalf("WriteFrame: %s", err)
	}

	first, err := f.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame 1: %s", err)
	}
	if string(first) != `{"type_":"fit"}` {
		t.Fatalf("first frame = %q", first)
	}
}

func TestLengthFramerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := LengthFramer{}
	payload := []byte(`{"type_":"fit","name_":"churn_model"}`)
	if err := f.WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %s", err)
	}

	got, err := f.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %s", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadFrame = %q, want %q", got, payload)
	}
}

func TestLengthFramerMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	f := LengthFramer{}
	msgs := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, m := range msgs {
		if err := f.WriteFrame(&buf, m); err != nil {
			t.Fatalf("WriteFrame(%s): %s", m, err)
		}
	}
	for _, want := range msgs {
		got, err := f.ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %s", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("ReadFrame = %q, want %q", got, want)
		}
	}
}
