package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"organ/internal/config"
	"organ/internal/media"
	"organ/internal/store"
	"organ/internal/testsupport"
)

func newTestContext(t *testing.T) *commandContext {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return contextWithConfig(cfg)
}

func contextWithConfig(cfg *config.Config) *commandContext {
	ctx := &commandContext{}
	ctx.configOnce.Do(func() {})
	ctx.config = cfg
	return ctx
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v\noutput: %s", args, err, buf.String())
	}
	return buf.String()
}

func TestRulesAddListRemove(t *testing.T) {
	ctx := newTestContext(t)

	out := runCommand(t, newRulesCommand(ctx),
		"add", "anime",
		"--target", "/library/anime",
		"--type", "tv",
		"--priority", "10",
		"--condition", "genre:contains:Animation",
	)
	if !strings.Contains(out, "Created rule anime") {
		t.Fatalf("add output = %q", out)
	}

	out = runCommand(t, newRulesCommand(ctx), "list")
	if !strings.Contains(out, "anime") || !strings.Contains(out, "/library/anime") {
		t.Fatalf("list output = %q", out)
	}

	var ruleID string
	if err := ctx.withStore(func(st *store.Store) error {
		rules, err := st.ListRules(context.Background(), false)
		if err != nil {
			return err
		}
		if len(rules) != 1 {
			t.Fatalf("rules = %d, want 1", len(rules))
		}
		if rules[0].MediaType != media.TypeTV || rules[0].Priority != 10 {
			t.Fatalf("rule = %+v", rules[0])
		}
		if len(rules[0].Conditions) != 1 || rules[0].Conditions[0].Operator != "contains" {
			t.Fatalf("conditions = %+v", rules[0].Conditions)
		}
		ruleID = rules[0].ID
		return nil
	}); err != nil {
		t.Fatalf("inspect store: %v", err)
	}

	runCommand(t, newRulesCommand(ctx), "disable", ruleID)
	out = runCommand(t, newRulesCommand(ctx), "list", "--enabled")
	if !strings.Contains(out, "No rules configured") {
		t.Fatalf("enabled list after disable = %q", out)
	}

	out = runCommand(t, newRulesCommand(ctx), "rm", ruleID)
	if !strings.Contains(out, "Deleted rule") {
		t.Fatalf("rm output = %q", out)
	}
}

func TestFoldersAddListToggle(t *testing.T) {
	ctx := newTestContext(t)
	watchDir := t.TempDir()

	out := runCommand(t, newFoldersCommand(ctx),
		"add", watchDir, "--type", "movie", "--recursive",
	)
	if !strings.Contains(out, "Monitoring "+watchDir) {
		t.Fatalf("add output = %q", out)
	}

	out = runCommand(t, newFoldersCommand(ctx), "list")
	if !strings.Contains(out, watchDir) || !strings.Contains(out, "never") {
		t.Fatalf("list output = %q", out)
	}

	runCommand(t, newFoldersCommand(ctx), "disable", "1")
	out = runCommand(t, newFoldersCommand(ctx), "list", "--enabled")
	if !strings.Contains(out, "No monitored folders") {
		t.Fatalf("enabled list after disable = %q", out)
	}

	out = runCommand(t, newFoldersCommand(ctx), "rm", "1")
	if !strings.Contains(out, "Removed folder 1") {
		t.Fatalf("rm output = %q", out)
	}
}

func TestParseRuleCondition(t *testing.T) {
	cases := []struct {
		spec     string
		wantErr  bool
		operator string
	}{
		{spec: "genre:contains:Animation", operator: "contains"},
		{spec: "year:between:2000,2010", operator: "between"},
		{spec: "country:in:DE,AT", operator: "in"},
		{spec: "year:gte:2017", operator: "gte"},
		{spec: "keyword:matches:s\\d{2}e\\d{2}", operator: "matches"},
		{spec: "no-operator", wantErr: true},
		{spec: "year:near:2017", wantErr: true},
		{spec: "year:between:2017", wantErr: true},
	}
	for _, tc := range cases {
		condition, err := parseRuleCondition(tc.spec)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseRuleCondition(%q) succeeded, want error", tc.spec)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseRuleCondition(%q): %v", tc.spec, err)
		}
		if condition.Operator != tc.operator {
			t.Fatalf("operator = %q, want %q", condition.Operator, tc.operator)
		}
	}

	between, err := parseRuleCondition("year:between:2000,2010")
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	values, ok := between.Value.([]any)
	if !ok || len(values) != 2 {
		t.Fatalf("between value = %#v", between.Value)
	}
	if values[0] != float64(2000) {
		t.Fatalf("between lower bound = %#v, want 2000", values[0])
	}
}

func TestParseMediaTypeAndBackend(t *testing.T) {
	if mt, err := parseMediaType("tv"); err != nil || mt != media.TypeTV {
		t.Fatalf("parseMediaType(tv) = %v, %v", mt, err)
	}
	if mt, err := parseMediaType(""); err != nil || mt != media.TypeUnknown {
		t.Fatalf("parseMediaType(empty) = %v, %v", mt, err)
	}
	if _, err := parseMediaType("music"); err == nil {
		t.Fatal("parseMediaType(music) succeeded")
	}

	if backend, err := parseBackend(""); err != nil || backend != media.BackendLocal {
		t.Fatalf("parseBackend(empty) = %v, %v", backend, err)
	}
	if backend, err := parseBackend("clouddrive"); err != nil || backend != media.BackendCloud {
		t.Fatalf("parseBackend(clouddrive) = %v, %v", backend, err)
	}
	if _, err := parseBackend("ftp"); err == nil {
		t.Fatal("parseBackend(ftp) succeeded")
	}
}

func TestCollectVideoFiles(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "Dark.S01E01.1080p.mkv")
	testsupport.WriteFile(t, video, 2048)
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 10)
	nested := filepath.Join(dir, "extras", "Dark.S01E02.1080p.mkv")
	testsupport.WriteFile(t, nested, 2048)

	files, err := collectVideoFiles([]string{dir}, false)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 1 || files[0].Path != video {
		t.Fatalf("flat collect = %+v", files)
	}
	if files[0].Backend != media.BackendLocal || files[0].Ext != ".mkv" {
		t.Fatalf("file info = %+v", files[0])
	}

	files, err = collectVideoFiles([]string{dir}, true)
	if err != nil {
		t.Fatalf("recursive collect: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("recursive collect = %d files, want 2", len(files))
	}

	if _, err := collectVideoFiles([]string{filepath.Join(dir, "missing.mkv")}, false); err == nil {
		t.Fatal("missing path succeeded")
	}
}

func TestCacheForgetAndPurge(t *testing.T) {
	ctx := newTestContext(t)

	out := runCommand(t, newCacheCommand(ctx), "forget", "Dark.S01E01.mkv", "--size", "2048")
	if !strings.Contains(out, "Forgot cached recognition") {
		t.Fatalf("forget output = %q", out)
	}

	out = runCommand(t, newCacheCommand(ctx), "purge")
	if !strings.Contains(out, "Purged 0 expired cache entries") {
		t.Fatalf("purge output = %q", out)
	}
}

func TestShareListAndReceive(t *testing.T) {
	var receiveForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		switch r.URL.Path {
		case "/share/snap":
			if r.Form.Get("share_code") != "abc123" || r.Form.Get("receive_code") != "pw" {
				t.Errorf("snap form = %v", r.Form)
			}
			fmt.Fprint(w, `{"state":true,"errNo":0,"snap":{"list":[{"fid":"f1","n":"movie.mkv","s":2048},{"cid":"d1","n":"extras"}]}}`)
		case "/files":
			if r.Form.Get("cid") == "0" {
				fmt.Fprint(w, `{"state":true,"errNo":0,"count":1,"data":[{"cid":"77","n":"incoming"}]}`)
				return
			}
			fmt.Fprint(w, `{"state":true,"errNo":0,"count":0,"data":[]}`)
		case "/share/receive":
			receiveForm = r.Form
			fmt.Fprint(w, `{"state":true}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.CloudDrive.Enabled = true
	cfg.CloudDrive.BaseURL = server.URL
	cfg.CloudDrive.Cookie = "UID=1"
	ctx := contextWithConfig(cfg)

	out := runCommand(t, newShareCommand(ctx), "list", "abc123", "--receive-code", "pw")
	if !strings.Contains(out, "movie.mkv") || !strings.Contains(out, "extras") {
		t.Fatalf("list output = %q", out)
	}

	out = runCommand(t, newShareCommand(ctx), "receive", "abc123", "/incoming", "--receive-code", "pw")
	if !strings.Contains(out, "Saved share abc123") {
		t.Fatalf("receive output = %q", out)
	}
	if receiveForm.Get("share_code") != "abc123" || receiveForm.Get("cid") != "77" {
		t.Fatalf("receive form = %v", receiveForm)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	ctx := newTestContext(t)

	out := runCommand(t, newConfigCommand(ctx), "show")
	if strings.Contains(out, "api_key = 'test'") || strings.Contains(out, `api_key = "test"`) {
		t.Fatalf("api key leaked: %q", out)
	}
	if !strings.Contains(out, "<redacted>") {
		t.Fatalf("show output missing redaction marker: %q", out)
	}
	if !strings.Contains(out, "[tmdb]") || !strings.Contains(out, "[transfer]") {
		t.Fatalf("show output missing sections: %q", out)
	}
}

func TestTransferFlagValidation(t *testing.T) {
	ctx := newTestContext(t)
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "Movie.2020.mkv"), 1024)

	cmd := newTransferCommand(ctx)
	var buf bytes.Buffer
	cmd.SetArgs([]string{dir, "--dry-run", "--execute"})
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("dry-run+execute err = %v", err)
	}

	cmd = newTransferCommand(ctx)
	cmd.SetArgs([]string{dir, "--replace-seasons"})
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--execute") {
		t.Fatalf("replace-seasons without execute err = %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
	long := strings.Repeat("a", 30)
	got := truncate(long, 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("truncate(long) = %q", got)
	}
}
