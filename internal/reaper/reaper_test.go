package reaper_test

import (
	"testing"
	"time"

	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/reaper"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

func TestPassDeletesExpiredSessionsAndResets(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())

	now := idgen.Timestamp(time.Now().Unix())
	const maxAge = int64(10)
	const resetTTL = int64(10)

	expiredSession := &domain.UserWebSession{ID: "expired", UserID: 1, CreatedTime: now - idgen.Timestamp(maxAge) - 100}
	liveSession := &domain.UserWebSession{ID: "live", UserID: 2, CreatedTime: now}
	all.InsertSession(expiredSession)
	all.InsertSession(liveSession)

	_, expiredHash := domain.NewToken()
	expiredReset := &domain.PasswordReset{UserID: 3, TokenHash: expiredHash, HasToken: true, IssuedTime: now - idgen.Timestamp(resetTTL) - 100}
	_, liveHash := domain.NewToken()
	liveReset := &domain.PasswordReset{UserID: 4, TokenHash: liveHash, HasToken: true, IssuedTime: now}
	all.PutPasswordReset(expiredReset)
	all.PutPasswordReset(liveReset)

	r := reaper.New(all, maxAge, resetTTL, 5*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	time.Sleep(40 * time.Millisecond)
	r.Stop(nil)
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	remaining := map[string]bool{}
	for _, s := range all.ListSessions() {
		remaining[s.ID] = true
	}
	if remaining["expired"] {
		t.Fatalf("expired session should have been reaped")
	}
	if !remaining["live"] {
		t.Fatalf("live session should not have been reaped")
	}

	remainingResets := map[idgen.UserID]bool{}
	for _, p := range all.ListPasswordResets() {
		remainingResets[p.UserID] = true
	}
	if remainingResets[3] {
		t.Fatalf("expired password reset should have been reaped")
	}
	if !remainingResets[4] {
		t.Fatalf("live password reset should not have been reaped")
	}
}

func TestName(t *testing.T) {
	r := reaper.New(world.NewAllWorldsState(t.TempDir()), 1, 1, time.Second)
	if r.Name() != "reaper" {
		t.Fatalf("got %q, want %q", r.Name(), "reaper")
	}
}
