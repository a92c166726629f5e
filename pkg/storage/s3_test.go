package storage

import "testing"

func TestArchiveKey(t *testing.T) {
	got := ArchiveKey("creator-1", "0b7c")
	if got != "sessions/creator-1/0b7c.json" {
		t.Fatalf("ArchiveKey() = %q", got)
	}
	if got := ArchiveKey("../evil", "x"); got != "sessions/evil/x.json" {
		t.Fatalf("ArchiveKey() = %q, want path components stripped", got)
	}
}

func TestPresignExpireDefault(t *testing.T) {
	s := &S3{}
	if got := s.PresignExpire().Minutes(); got != 15 {
		t.Fatalf("PresignExpire() = %vm, want 15m", got)
	}
	s.cfg.PresignExpireMinutes = 5
	if got := s.PresignExpire().Minutes(); got != 5 {
		t.Fatalf("PresignExpire() = %vm, want 5m", got)
	}
}
