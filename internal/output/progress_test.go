package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// A bytes.Buffer is never a TTY, so the bar only emits a line once the
// count reaches the total. That keeps piped output to one line per bar.
func TestProgressBar_NonTTY_SilentUntilComplete(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(4, "Fetching packages")
	p.SetWriter(buf)

	p.Increment()
	p.Increment()
	if buf.Len() != 0 {
		t.Errorf("partial progress should not emit on non-TTY, got: %q", buf.String())
	}

	p.Increment()
	p.Increment()
	output := buf.String()
	if !strings.Contains(output, "100%") {
		t.Errorf("completed bar should show 100%%, got: %q", output)
	}
	if !strings.Contains(output, "Fetching packages") {
		t.Errorf("completed bar should contain the description, got: %q", output)
	}
	if !strings.Contains(output, "(4/4)") {
		t.Errorf("completed bar should show the step counts, got: %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("non-TTY completion should end with a newline, got: %q", output)
	}
}

func TestProgressBar_Add_CapsAtTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(10, "Test")
	p.SetWriter(buf)

	p.Add(15)
	output := buf.String()

	if !strings.Contains(output, "100%") {
		t.Errorf("progress should cap at 100%%, got: %q", output)
	}
	if !strings.Contains(output, "(10/10)") {
		t.Errorf("current should cap at total, got: %q", output)
	}
}

func TestProgressBar_SetCurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(100, "Downloading")
	p.SetWriter(buf)

	p.SetCurrent(50)
	if buf.Len() != 0 {
		t.Errorf("half progress should not emit on non-TTY, got: %q", buf.String())
	}

	p.SetCurrent(100)
	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("SetCurrent(total) should emit the completed bar, got: %q", buf.String())
	}
}

func TestProgressBar_Finish(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(100, "Fetching packages")
	p.SetWriter(buf)

	p.SetCurrent(75)
	p.Finish()
	output := buf.String()

	if !strings.Contains(output, "100%") {
		t.Errorf("Finish() should show 100%%, got: %q", output)
	}
	if strings.Count(output, "100%") != 1 {
		t.Errorf("Finish() should emit the completion line once, got: %q", output)
	}
}

func TestProgressBar_FinishAfterComplete_DoesNotRepeat(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(2, "Test")
	p.SetWriter(buf)

	p.Add(2)
	p.Finish()

	if strings.Count(buf.String(), "100%") != 1 {
		t.Errorf("Finish() after completion should not emit a second line, got: %q", buf.String())
	}
}

func TestProgressBar_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(0, "Empty")
	p.SetWriter(buf)

	// Must not divide by zero.
	p.Increment()
	p.Finish()
}

func TestByteProgress_Counts(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewByteProgress(2097152, "linux-6.8.starpack")
	p.SetWriter(buf)

	p.Add(2097152)
	output := buf.String()

	if !strings.Contains(output, "2.1 MB / 2.1 MB") {
		t.Errorf("byte progress should render humanized sizes, got: %q", output)
	}
}

func TestProgressBar_Concurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(1000, "Concurrent test")
	p.SetWriter(buf)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				p.Increment()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("after concurrent increments, should be at 100%%, got: %q", buf.String())
	}
}

// On a non-TTY writer the spinner prints its message once and skips the
// animation goroutine entirely.
func TestSpinner_NonTTY_PrintsMessageOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Verifying signatures")
	s.SetWriter(buf)

	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	output := buf.String()
	if output != "Verifying signatures...\n" {
		t.Errorf("non-TTY spinner output = %q, want single message line", output)
	}
}

func TestSpinner_MultipleStops(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Test")
	s.SetWriter(buf)

	s.Start()
	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinner_StopWithMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Working")
	s.SetWriter(buf)

	s.Start()
	s.StopWithMessage("verified 3 signature(s)")

	if !strings.Contains(buf.String(), "verified 3 signature(s)") {
		t.Errorf("spinner should print the final message, got: %q", buf.String())
	}
}

func TestSpinner_UpdateMessage_Concurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Concurrent spinner")
	s.SetWriter(buf)
	s.Start()

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				s.UpdateMessage("Message from goroutine")
				time.Sleep(time.Millisecond)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	s.Stop()
}
