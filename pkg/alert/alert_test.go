package alert

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogSink_Levels(t *testing.T) {
	tests := []struct {
		name      string
		alert     Alert
		wantLevel string
		wantLine  bool
	}{
		{
			name:      "error with line",
			alert:     Alert{Message: "individualName is blank", Importance: ImportanceError, Line: 4},
			wantLevel: `"level":"error"`,
			wantLine:  true,
		},
		{
			name:      "warning",
			alert:     Alert{Message: "page dropped", Importance: ImportanceWarning},
			wantLevel: `"level":"warn"`,
		},
		{
			name:      "info",
			alert:     Alert{Message: "note", Importance: ImportanceInfo},
			wantLevel: `"level":"info"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			sink := NewLogSink(zerolog.New(buf))

			sink.Alert(tt.alert)

			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("output %q missing %s", out, tt.wantLevel)
			}
			if !strings.Contains(out, tt.alert.Message) {
				t.Errorf("output %q missing message", out)
			}
			if tt.wantLine && !strings.Contains(out, `"line":4`) {
				t.Errorf("output %q missing line field", out)
			}
		})
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			imp := ImportanceError
			if i%2 == 0 {
				imp = ImportanceWarning
			}
			c.Alert(Alert{Message: "x", Importance: imp})
		}(i)
	}
	wg.Wait()

	if len(c.Alerts()) != 20 {
		t.Errorf("len(Alerts()) = %d, want 20", len(c.Alerts()))
	}
	if c.Count(ImportanceError) != 10 {
		t.Errorf("Count(error) = %d, want 10", c.Count(ImportanceError))
	}
}

func TestMulti(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	Multi{a, nil, b}.Alert(Alert{Message: "m", Importance: ImportanceInfo})

	if len(a.Alerts()) != 1 || len(b.Alerts()) != 1 {
		t.Error("every sink should receive the alert")
	}
}

func TestAlertString(t *testing.T) {
	got := Alert{Message: "missing", Importance: ImportanceError, Line: 3}.String()
	if got != "[error] line 3: missing" {
		t.Errorf("String() = %q", got)
	}
}

func TestForLine(t *testing.T) {
	c := NewCollector()
	sink := ForLine(c, 7)

	sink.Alert(Alert{Message: "page 2 failed", Importance: ImportanceWarning})
	sink.Alert(Alert{Message: "explicit", Importance: ImportanceError, Line: 3})

	got := c.Alerts()
	if len(got) != 2 {
		t.Fatalf("collected %d alerts, want 2", len(got))
	}
	if got[0].Line != 7 {
		t.Errorf("Line = %d, want 7", got[0].Line)
	}
	if got[1].Line != 3 {
		t.Errorf("Line = %d, want explicit 3 kept", got[1].Line)
	}
}
