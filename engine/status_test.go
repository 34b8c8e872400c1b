package engine

import "testing"

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		status Status
		code   int
	}{
		{StatusCompleted, 0},
		{StatusVideoDownloading, 1},
		{StatusAudioDownloading, 2},
		{StatusMerging, 3},
		{StatusPending, 4},
		{StatusFailed, 5},
		{StatusPlanStart, 6},
		{StatusPaused, 7},
	}

	for _, tt := range tests {
		if int(tt.status) != tt.code {
			t.Errorf("%s = %d, want %d", tt.status, int(tt.status), tt.code)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusPending, false},
		{StatusPlanStart, false},
		{StatusVideoDownloading, false},
		{StatusAudioDownloading, false},
		{StatusMerging, false},
		{StatusPaused, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.expected {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.expected)
		}
	}
}

func TestStatusTone(t *testing.T) {
	if StatusCompleted.Tone() != "success" {
		t.Errorf("Completed tone = %q", StatusCompleted.Tone())
	}
	if StatusFailed.Tone() != "exception" {
		t.Errorf("Failed tone = %q", StatusFailed.Tone())
	}
	if StatusPaused.Tone() != "warning" {
		t.Errorf("Paused tone = %q", StatusPaused.Tone())
	}
	if Status(42).Tone() != "" {
		t.Error("unknown status should have empty tone")
	}
	if Status(42).String() != "Status(42)" {
		t.Errorf("unknown status String() = %q", Status(42).String())
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		expected bool
	}{
		{StatusPending, StatusPlanStart, true},
		{StatusPlanStart, StatusVideoDownloading, true},
		{StatusVideoDownloading, StatusAudioDownloading, true},
		{StatusAudioDownloading, StatusMerging, true},
		{StatusMerging, StatusCompleted, true},
		{StatusMerging, StatusFailed, true},
		{StatusAudioDownloading, StatusCompleted, true},
		{StatusVideoDownloading, StatusPaused, true},
		{StatusAudioDownloading, StatusPaused, true},
		{StatusPaused, StatusVideoDownloading, true},
		{StatusPaused, StatusAudioDownloading, true},
		{StatusMerging, StatusPaused, false},
		{StatusPlanStart, StatusPaused, false},
		{StatusAudioDownloading, StatusVideoDownloading, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPlanStart, false},
		{StatusPaused, StatusMerging, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.expected {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
		}
	}
}

func TestDescriptorStem(t *testing.T) {
	d := TaskDescriptor{OutputPath: "/data/videos/标题.mp4"}
	if got := d.Stem(); got != "/data/videos/标题" {
		t.Errorf("Stem() = %q", got)
	}
	if got := d.SidecarPath(".ass"); got != "/data/videos/标题.ass" {
		t.Errorf("SidecarPath() = %q", got)
	}
}
