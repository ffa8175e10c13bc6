package progress

import (
	"bytes"
	"testing"
)

func TestDisabledReporterIsNil(t *testing.T) {
	p := NewEmbedding(false, nil)
	if p != nil {
		t.Fatalf("disabled reporter should be nil")
	}
	if p.Func() != nil {
		t.Errorf("nil reporter should give a nil callback")
	}
	p.Report(1, 2)
	p.Finish()
}

func TestEmbeddingReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewEmbedding(true, &buf)
	report := p.Func()
	report(2, 4)
	report(4, 4)
	if buf.Len() == 0 {
		t.Errorf("bar wrote nothing")
	}
	p.Finish()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	stop := StartSpinner(false, "thinking")
	stop()
	stop()
}
