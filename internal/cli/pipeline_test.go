package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/subfeed/internal/feed"
)

type testFeeds struct {
	srv         *httptest.Server
	konkleFails bool
	konkleAuth  string
}

func newTestFeeds(t *testing.T) *testFeeds {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	rss := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>React</title>
    <item>
      <title>React v0.14 Release Candidate</title>
      <link>https://facebook.github.io/react/blog/rc1.html</link>
      <pubDate>%s</pubDate>
      <description><![CDATA[<p>Our first release candidate. Ask for a token.</p>]]></description>
    </item>
    <item>
      <title>New React Developer Tools</title>
      <link>https://facebook.github.io/react/blog/devtools.html</link>
      <pubDate>%s</pubDate>
      <description>Stable devtools.</description>
    </item>
  </channel>
</rss>`, now.Add(-2*time.Hour).Format(time.RFC1123Z), now.Add(-5*time.Hour).Format(time.RFC1123Z))

	konkle := fmt.Sprintf(`{"posts":[{"id":"k-1","headline":"Shipping the editor","permalink":"https://konkle.example.com/p/1","published_at":%q,"excerpt":"Finally here."}]}`,
		now.Add(-time.Hour).Format(time.RFC3339))

	tf := &testFeeds{}
	mux := http.NewServeMux()
	mux.HandleFunc("/react/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss)
	})
	mux.HandleFunc("/konkle/api/posts", func(w http.ResponseWriter, r *http.Request) {
		tf.konkleAuth = r.Header.Get("Authorization")
		if tf.konkleFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, konkle)
	})
	tf.srv = httptest.NewServer(mux)
	t.Cleanup(tf.srv.Close)
	return tf
}

func writeTestConfig(t *testing.T, dir, dbPath, baseURL string, partial bool) {
	t.Helper()

	content := "subscriptions:\n" +
		"  - name: React Blog\n" +
		"    url: " + baseURL + "/react/feed.xml\n" +
		"    type: facebook\n" +
		"  - name: Konkle\n" +
		"    url: " + baseURL + "/konkle\n" +
		"    type: konkle\n" +
		"    api_key_env: SUBFEED_TEST_KONKLE_KEY\n" +
		"fetch:\n" +
		"  timeout: 5s\n" +
		"  retries: 1\n" +
		fmt.Sprintf("  partial: %t\n", partial) +
		"storage:\n" +
		"  path: \"" + dbPath + "\"\n" +
		"output:\n" +
		"  format: terminal\n" +
		"privacy:\n" +
		"  redact:\n" +
		"    enabled: true\n" +
		"    patterns: [\"(?i)token\"]\n" +
		"log:\n" +
		"  level: error\n"

	writeFile(t, filepath.Join(dir, "subfeed.yaml"), content)
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestPipelinePullShowStats(t *testing.T) {
	t.Setenv("SUBFEED_TEST_KONKLE_KEY", "secret")
	feeds := newTestFeeds(t)
	dir := t.TempDir()
	writeTestConfig(t, dir, filepath.Join(dir, "subfeed.db"), feeds.srv.URL, false)
	out := useTestGlobals(t, dir)
	cmd := testCommand()

	if err := pullAction(cmd, nil); err != nil {
		t.Fatalf("pull action: %v", err)
	}
	requireContains(t, out.String(), "Pulled 3 posts from 2 subscriptions (3 new)")
	if feeds.konkleAuth != "Bearer secret" {
		t.Errorf("konkle authorization = %q", feeds.konkleAuth)
	}

	out.Reset()
	if err := pullAction(cmd, nil); err != nil {
		t.Fatalf("second pull: %v", err)
	}
	requireContains(t, out.String(), "Pulled 3 posts from 2 subscriptions (0 new)")

	out.Reset()
	outputFormat = "json"
	if err := showAction(cmd, nil); err != nil {
		t.Fatalf("show action: %v", err)
	}
	var posts []feed.Post
	if err := json.Unmarshal(out.Bytes(), &posts); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out.String())
	}
	if len(posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(posts))
	}
	if !feed.IsDescending(posts) {
		t.Error("show output not newest first")
	}
	wantOrder := []string{"Konkle", "React Blog", "React Blog"}
	for i, p := range posts {
		if p.Subscription == nil || p.Subscription.Name != wantOrder[i] {
			t.Errorf("post %d subscription = %v, want %s", i, p.Subscription, wantOrder[i])
		}
		if p.Subscription != nil && p.Subscription.Meta != nil {
			t.Errorf("post %d leaks subscription meta", i)
		}
	}
	if posts[1].Description != "Our first release candidate. Ask for a [REDACTED]." {
		t.Errorf("description = %q, want redacted", posts[1].Description)
	}

	out.Reset()
	outputLimit = 1
	if err := showAction(cmd, nil); err != nil {
		t.Fatalf("show with limit: %v", err)
	}
	posts = nil
	if err := json.Unmarshal(out.Bytes(), &posts); err != nil || len(posts) != 1 {
		t.Fatalf("limited show = %d posts, %v", len(posts), err)
	}

	out.Reset()
	statsFormat = "json"
	if err := statsAction(cmd, nil); err != nil {
		t.Fatalf("stats action: %v", err)
	}
	var stats jsonStatsOutput
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(stats.Subscriptions) != 2 || stats.Subscriptions[0].Posts != 2 || stats.Subscriptions[1].Posts != 1 {
		t.Errorf("stats = %+v", stats.Subscriptions)
	}
	if len(stats.Runs) != 2 || stats.Runs[0].New != 0 || stats.Runs[1].New != 3 {
		t.Errorf("runs = %+v", stats.Runs)
	}
}

func TestPullAllOrNothing(t *testing.T) {
	feeds := newTestFeeds(t)
	feeds.konkleFails = true
	dir := t.TempDir()
	writeTestConfig(t, dir, filepath.Join(dir, "subfeed.db"), feeds.srv.URL, false)
	out := useTestGlobals(t, dir)

	if err := pullAction(testCommand(), nil); err == nil {
		t.Fatalf("expected error, got output:\n%s", out.String())
	}
}

func TestPullPartial(t *testing.T) {
	feeds := newTestFeeds(t)
	feeds.konkleFails = true
	dir := t.TempDir()
	writeTestConfig(t, dir, filepath.Join(dir, "subfeed.db"), feeds.srv.URL, true)
	out := useTestGlobals(t, dir)

	if err := pullAction(testCommand(), nil); err != nil {
		t.Fatalf("pull action: %v", err)
	}
	requireContains(t, out.String(), "warning: Konkle")
	requireContains(t, out.String(), "Pulled 2 posts from 1 subscriptions (2 new) (1 unavailable)")
}

func TestFetchPrintsWithoutStoring(t *testing.T) {
	feeds := newTestFeeds(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subfeed.db")
	writeTestConfig(t, dir, dbPath, feeds.srv.URL, false)
	out := useTestGlobals(t, dir)
	outputFormat = "markdown"

	if err := fetchAction(testCommand(), nil); err != nil {
		t.Fatalf("fetch action: %v", err)
	}
	requireContains(t, out.String(), "2 subscriptions, 3 posts")
	requireContains(t, out.String(), "[Shipping the editor](https://konkle.example.com/p/1)")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Errorf("fetch touched the database: %v", err)
	}
}

func TestDoctor(t *testing.T) {
	feeds := newTestFeeds(t)
	dir := t.TempDir()
	writeTestConfig(t, dir, filepath.Join(dir, "subfeed.db"), feeds.srv.URL, false)
	out := useTestGlobals(t, dir)

	if err := doctorAction(testCommand(), nil); err != nil {
		t.Fatalf("doctor: %v\n%s", err, out.String())
	}
	requireContains(t, out.String(), "(2 subscriptions)")
	requireContains(t, out.String(), "React Blog (facebook): 2 posts")
	requireContains(t, out.String(), "All checks passed.")

	feeds.konkleFails = true
	out.Reset()
	if err := doctorAction(testCommand(), nil); err == nil {
		t.Fatal("expected doctor to fail")
	}
	requireContains(t, out.String(), "[FAIL] Konkle (konkle)")
}

func TestDoctorOffline(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, filepath.Join(dir, "subfeed.db"), "http://127.0.0.1:1", false)
	out := useTestGlobals(t, dir)
	doctorOffline = true

	if err := doctorAction(testCommand(), nil); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	requireContains(t, out.String(), "skipping subscription checks")
}

func TestDoctorMissingConfig(t *testing.T) {
	out := useTestGlobals(t, t.TempDir())
	if err := doctorAction(testCommand(), nil); err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, out.String(), "[FAIL] config")
}
