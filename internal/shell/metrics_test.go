package shell

import (
	"testing"
	"time"
)

func TestMetrics_RecordRequest(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("initialize", 30*time.Millisecond, ClassSuccess)
	m.RecordRequest("initialize", 10*time.Millisecond, ClassApplicationError)
	m.RecordRequest("textDocument/hover", 5*time.Millisecond, ClassTransportFailure)
	m.RecordNotification()

	if m.TotalRequests() != 3 {
		t.Errorf("TotalRequests() = %d, want 3", m.TotalRequests())
	}
	if m.TotalNotifications() != 1 {
		t.Errorf("TotalNotifications() = %d, want 1", m.TotalNotifications())
	}
	if avg := m.AverageDuration(); avg != 15*time.Millisecond {
		t.Errorf("AverageDuration() = %v, want 15ms", avg)
	}

	s := m.MethodStats("initialize")
	if s == nil {
		t.Fatal("no stats for initialize")
	}
	if s.Requests != 2 || s.ApplicationErrors != 1 || s.MaxDuration != 30*time.Millisecond {
		t.Errorf("stats = %+v", s)
	}
	if s.LastClass != ClassApplicationError {
		t.Errorf("LastClass = %v", s.LastClass)
	}

	s.Requests = 100
	if m.MethodStats("initialize").Requests != 2 {
		t.Error("MethodStats returned shared state")
	}
	if m.MethodStats("unknown") != nil {
		t.Error("stats for a method never sent")
	}
}

func TestMetrics_SlowestMethods(t *testing.T) {
	m := NewMetrics()
	if len(m.SlowestMethods(3)) != 0 {
		t.Fatal("empty metrics returned methods")
	}

	m.RecordRequest("a", 10*time.Millisecond, ClassSuccess)
	m.RecordRequest("b", 50*time.Millisecond, ClassSuccess)
	m.RecordRequest("c", 20*time.Millisecond, ClassSuccess)

	slow := m.SlowestMethods(2)
	if len(slow) != 2 {
		t.Fatalf("SlowestMethods(2) returned %d methods", len(slow))
	}
	if slow[0].Method != "b" || slow[1].Method != "c" {
		t.Errorf("SlowestMethods(2) = %v, %v", slow[0].Method, slow[1].Method)
	}
}
