package hostproxy

import (
	"bytes"
	"testing"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0x42, 0x01, 0x02, 0x03}

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %v want %v", got, payload)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff})
	if _, err := ReadFrame(buf); err == nil {
		t.Fatal("expected an error for an implausible frame length")
	}
}

func TestReadFrameRejectsZeroPayload(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x02, 0x00})
	if _, err := ReadFrame(buf); err == nil {
		t.Fatal("expected an error when the frame carries no payload")
	}
}
