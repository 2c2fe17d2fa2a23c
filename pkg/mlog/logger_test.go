package mlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	sink1 := new(bytes.Buffer)
	sink2 := new(bytes.Buffer)

	AddLogger("sink1Level", sink1, DEBUG)
	AddLogger("sink2Level", sink2, INFO)
	defer DelLogger("sink1Level")
	defer DelLogger("sink2Level")

	Debug("test 123")

	s1 := sink1.String()
	s2 := sink2.String()

	if !strings.Contains(s1, "test 123") {
		t.Fatalf("sink1 got: %v", s1)
	}
	if len(s2) != 0 {
		t.Fatalf("sink2 got: %v", s2)
	}
}

func TestDelLogger(t *testing.T) {
	sink := new(bytes.Buffer)

	AddLogger("sinkDel", sink, DEBUG)

	Debug("before")
	if !strings.Contains(sink.String(), "before") {
		t.Fatalf("sink got: %v", sink.String())
	}

	DelLogger("sinkDel")
	sink.Reset()

	Debug("after")
	if sink.Len() != 0 {
		t.Fatalf("expected no output after DelLogger, got: %v", sink.String())
	}
}

func TestWillLog(t *testing.T) {
	sink := new(bytes.Buffer)
	AddLogger("sinkWillLog", sink, WARN)
	defer DelLogger("sinkWillLog")

	if WillLog(DEBUG) {
		t.Fatal("expected WillLog(DEBUG) to be false at WARN level")
	}
	if !WillLog(ERROR) {
		t.Fatal("expected WillLog(ERROR) to be true at WARN level")
	}
}
