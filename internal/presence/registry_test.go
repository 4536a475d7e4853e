package presence

import (
	"fmt"
	"sync"
	"testing"
)

// TestConnect はConnectによるオンライン遷移の検出を検証する。
func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("最初のセッションでIsFirstConnectionがtrueになること", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		result := r.Connect("user-1", "org-1", "session-1")
		if !result.IsFirstConnection {
			t.Error("IsFirstConnection = false, want true")
		}
		if result.PreviousOrgID != "" {
			t.Errorf("PreviousOrgID = %q, want 空文字列", result.PreviousOrgID)
		}
	})

	t.Run("2つ目のセッションではIsFirstConnectionがfalseになること", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		result := r.Connect("user-1", "org-1", "session-2")
		if result.IsFirstConnection {
			t.Error("IsFirstConnection = true, want false")
		}
	})

	t.Run("別組織で再接続するとPreviousOrgIDが設定されること", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		result := r.Connect("user-1", "org-2", "session-2")
		if result.PreviousOrgID != "org-1" {
			t.Errorf("PreviousOrgID = %q, want %q", result.PreviousOrgID, "org-1")
		}

		// 最後の接続の組織が勝つ
		record, ok := r.Get("user-1")
		if !ok {
			t.Fatal("Get()がok=falseを返した")
		}
		if record.OrgID != "org-2" {
			t.Errorf("OrgID = %q, want %q", record.OrgID, "org-2")
		}
	})

	t.Run("同じ組織での再接続ではPreviousOrgIDが空になること", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		result := r.Connect("user-1", "org-1", "session-2")
		if result.PreviousOrgID != "" {
			t.Errorf("PreviousOrgID = %q, want 空文字列", result.PreviousOrgID)
		}
	})
}

// TestDisconnect はDisconnectによるオフライン遷移の検出を検証する。
func TestDisconnect(t *testing.T) {
	t.Parallel()

	t.Run("最後のセッション切断でIsFullyOfflineがtrueになること", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		result := r.Disconnect("session-1")

		if !result.IsFullyOffline {
			t.Error("IsFullyOffline = false, want true")
		}
		if result.UserID != "user-1" {
			t.Errorf("UserID = %q, want %q", result.UserID, "user-1")
		}
		if result.OrgID != "org-1" {
			t.Errorf("OrgID = %q, want %q", result.OrgID, "org-1")
		}
		if r.IsOnline("user-1") {
			t.Error("切断後もIsOnline()がtrueを返した")
		}
	})

	t.Run("セッションが残っている間はIsFullyOfflineがfalseになること", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		r.Connect("user-1", "org-1", "session-2")

		result := r.Disconnect("session-1")
		if result.IsFullyOffline {
			t.Error("IsFullyOffline = true, want false")
		}
		if !r.IsOnline("user-1") {
			t.Error("セッションが残っているのにIsOnline()がfalseを返した")
		}

		result = r.Disconnect("session-2")
		if !result.IsFullyOffline {
			t.Error("最後の切断でIsFullyOffline = false, want true")
		}
	})

	t.Run("未知のセッションIDは何もしないこと", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		result := r.Disconnect("unknown-session")
		if result.IsFullyOffline {
			t.Error("IsFullyOffline = true, want false")
		}
		if result.UserID != "" {
			t.Errorf("UserID = %q, want 空文字列", result.UserID)
		}
	})

	t.Run("切断後もLastSeenが保持されること", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		r.Disconnect("session-1")

		record, ok := r.Get("user-1")
		if !ok {
			t.Fatal("切断後にGet()がok=falseを返した")
		}
		if record.IsOnline {
			t.Error("IsOnline = true, want false")
		}
		if record.LastSeen.IsZero() {
			t.Error("LastSeenがゼロ値")
		}
	})
}

// TestOnlineUsersInOrg は組織スコープのオンラインユーザー検索を検証する。
func TestOnlineUsersInOrg(t *testing.T) {
	t.Parallel()

	t.Run("組織内のオンラインユーザーのみが返ること", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		r.Connect("user-2", "org-1", "session-2")
		r.Connect("user-3", "org-2", "session-3")

		users := r.OnlineUsersInOrg("org-1")
		if len(users) != 2 {
			t.Fatalf("ユーザー数: got %d, want 2", len(users))
		}
		found := map[string]bool{}
		for _, u := range users {
			found[u] = true
		}
		if !found["user-1"] || !found["user-2"] {
			t.Errorf("結果にuser-1とuser-2が含まれていない: %v", users)
		}
	})

	t.Run("オフラインになったユーザーは含まれないこと", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		r.Disconnect("session-1")

		users := r.OnlineUsersInOrg("org-1")
		if len(users) != 0 {
			t.Errorf("ユーザー数: got %d, want 0", len(users))
		}
	})

	t.Run("別組織に移ったユーザーは元の組織に含まれないこと", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		r.Connect("user-1", "org-1", "session-1")
		r.Connect("user-1", "org-2", "session-2")

		if users := r.OnlineUsersInOrg("org-1"); len(users) != 0 {
			t.Errorf("org-1のユーザー数: got %d, want 0", len(users))
		}
		if users := r.OnlineUsersInOrg("org-2"); len(users) != 1 {
			t.Errorf("org-2のユーザー数: got %d, want 1", len(users))
		}
	})
}

// TestOnlineStatus はオンライン状態の一括取得を検証する。
func TestOnlineStatus(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Connect("user-1", "org-1", "session-1")

	statuses := r.OnlineStatus([]string{"user-1", "user-2"})
	if !statuses["user-1"] {
		t.Error("user-1のステータス: got false, want true")
	}
	if statuses["user-2"] {
		t.Error("user-2のステータス: got true, want false")
	}
}

// TestCounts はオンラインユーザー数とセッション数の集計を検証する。
func TestCounts(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Connect("user-1", "org-1", "session-1")
	r.Connect("user-1", "org-1", "session-2")
	r.Connect("user-2", "org-1", "session-3")

	if got := r.OnlineUserCount(); got != 2 {
		t.Errorf("OnlineUserCount() = %d, want 2", got)
	}
	if got := r.SessionCount(); got != 3 {
		t.Errorf("SessionCount() = %d, want 3", got)
	}

	r.Disconnect("session-1")
	if got := r.OnlineUserCount(); got != 2 {
		t.Errorf("切断後のOnlineUserCount() = %d, want 2", got)
	}
	if got := r.SessionCount(); got != 2 {
		t.Errorf("切断後のSessionCount() = %d, want 2", got)
	}
}

// TestConcurrentConnectDisconnect は同一ユーザーへの並行接続/切断で
// オンライン/オフライン遷移が正確に1回ずつ報告されることを検証する。
func TestConcurrentConnectDisconnect(t *testing.T) {
	t.Parallel()

	const sessionCount = 100
	r := NewRegistry()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		firstCount int
		sessionIDs []string
	)

	// 並行に接続する
	for i := 0; i < sessionCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i)
			result := r.Connect("user-1", "org-1", id)
			mu.Lock()
			defer mu.Unlock()
			if result.IsFirstConnection {
				firstCount++
			}
			sessionIDs = append(sessionIDs, id)
		}(i)
	}
	wg.Wait()

	if firstCount != 1 {
		t.Errorf("IsFirstConnectionの回数: got %d, want 1", firstCount)
	}
	if !r.IsOnline("user-1") {
		t.Error("全接続後にIsOnline()がfalseを返した")
	}

	// 並行に切断する
	var offlineCount int
	for _, id := range sessionIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			result := r.Disconnect(id)
			mu.Lock()
			defer mu.Unlock()
			if result.IsFullyOffline {
				offlineCount++
			}
		}(id)
	}
	wg.Wait()

	if offlineCount != 1 {
		t.Errorf("IsFullyOfflineの回数: got %d, want 1", offlineCount)
	}
	if r.IsOnline("user-1") {
		t.Error("全切断後にIsOnline()がtrueを返した")
	}
}
