package display

import "testing"

func testTimelines() []FrameTimeline {
	tl := make([]FrameTimeline, FrameTimelineCap)
	for i := range tl {
		tl[i] = FrameTimeline{
			VsyncID:                  int64(10 + i),
			ExpectedPresentationTime: int64(1000 + 100*i),
			DeadlineTimestamp:        int64(900 + 100*i),
		}
	}
	return tl
}

func TestEncodeVsync(t *testing.T) {
	raw := RawVsyncPayload{
		Timelines:                   testTimelines(),
		PreferredFrameTimelineIndex: 2,
		FrameInterval:               16666667,
	}

	got, err := EncodeVsync(raw)
	if err != nil {
		t.Fatalf("EncodeVsync() error = %v", err)
	}

	if got.FrameTimelines[2].VsyncID != 12 {
		t.Errorf("FrameTimelines[2].VsyncID = %d, want 12", got.FrameTimelines[2].VsyncID)
	}
	if got.FrameInterval != 16666667 {
		t.Errorf("FrameInterval = %d, want 16666667", got.FrameInterval)
	}
	if got.PreferredFrameTimelineIndex != 2 {
		t.Errorf("PreferredFrameTimelineIndex = %d, want 2", got.PreferredFrameTimelineIndex)
	}
	if got.PreferredTimeline().VsyncID != 12 {
		t.Errorf("PreferredTimeline().VsyncID = %d, want 12", got.PreferredTimeline().VsyncID)
	}

	// Positional copy: source order preserved.
	for i := 0; i < FrameTimelineCap; i++ {
		if got.FrameTimelines[i].VsyncID != int64(10+i) {
			t.Errorf("FrameTimelines[%d].VsyncID = %d, want %d", i, got.FrameTimelines[i].VsyncID, 10+i)
		}
	}
}

func TestEncodeVsync_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  RawVsyncPayload
	}{
		{
			name: "too few timelines",
			raw: RawVsyncPayload{
				Timelines:                   testTimelines()[:FrameTimelineCap-1],
				PreferredFrameTimelineIndex: 0,
			},
		},
		{
			name: "too many timelines",
			raw: RawVsyncPayload{
				Timelines:                   append(testTimelines(), FrameTimeline{}),
				PreferredFrameTimelineIndex: 0,
			},
		},
		{
			name: "negative preferred index",
			raw: RawVsyncPayload{
				Timelines:                   testTimelines(),
				PreferredFrameTimelineIndex: -1,
			},
		},
		{
			name: "preferred index past end",
			raw: RawVsyncPayload{
				Timelines:                   testTimelines(),
				PreferredFrameTimelineIndex: FrameTimelineCap,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeVsync(tt.raw); err == nil {
				t.Error("EncodeVsync() expected error, got nil")
			}
		})
	}
}

func TestEncodeVsync_Deterministic(t *testing.T) {
	raw := RawVsyncPayload{
		Timelines:                   testTimelines(),
		PreferredFrameTimelineIndex: 1,
		FrameInterval:               8333333,
	}

	a, err := EncodeVsync(raw)
	if err != nil {
		t.Fatalf("EncodeVsync() error = %v", err)
	}
	b, err := EncodeVsync(raw)
	if err != nil {
		t.Fatalf("EncodeVsync() error = %v", err)
	}
	if a != b {
		t.Error("EncodeVsync() is not deterministic")
	}
}

func TestCopyInto_PreservesIdentity(t *testing.T) {
	src, err := EncodeVsync(RawVsyncPayload{
		Timelines:                   testTimelines(),
		PreferredFrameTimelineIndex: 3,
		FrameInterval:               16666667,
	})
	if err != nil {
		t.Fatalf("EncodeVsync() error = %v", err)
	}

	dst := &VsyncEventData{FrameInterval: -1}
	src.CopyInto(dst)

	if dst.FrameInterval != 16666667 {
		t.Errorf("dst.FrameInterval = %d, want 16666667", dst.FrameInterval)
	}
	if dst.PreferredFrameTimelineIndex != 3 {
		t.Errorf("dst.PreferredFrameTimelineIndex = %d, want 3", dst.PreferredFrameTimelineIndex)
	}
	if dst.FrameTimelines != src.FrameTimelines {
		t.Error("dst timelines differ from src after CopyInto")
	}
}
