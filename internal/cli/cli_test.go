package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/supportline/internal/bridge"
	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/domain"
	"github.com/soyeahso/supportline/internal/failover"
	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/soyeahso/supportline/internal/store"
	"github.com/soyeahso/supportline/internal/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command against a throwaway SUPPORTLINE_HOME.
func runCLI(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SUPPORTLINE_HOME", home)
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "supportline")
}

func TestConfigCommands(t *testing.T) {
	home := t.TempDir()

	out, err := runCLI(t, home, "config", "set", "failover.maxAttempts", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Set failover.maxAttempts = 5")

	out, err = runCLI(t, home, "config", "set", "profile.token", "s3cret")
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cret")

	out, err = runCLI(t, home, "config", "get", "failover.maxAttempts")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	out, err = runCLI(t, home, "config", "get", "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "token: '********'")
	assert.NotContains(t, out, "s3cret")

	out, err = runCLI(t, home, "config", "get", "profile.token", "--reveal")
	require.NoError(t, err)
	assert.Equal(t, "s3cret\n", out)

	_, err = runCLI(t, home, "config", "unset", "profile.token")
	require.NoError(t, err)
	_, err = runCLI(t, home, "config", "get", "profile.token")
	assert.Error(t, err)

	out, err = runCLI(t, home, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Failover.MaxAttempts)
}

func TestVisibilityCheckCommand(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(`
visibility:
  allowedPaths: ["/dashboard", "/properties/:id"]
`), 0o600))

	out, err := runCLI(t, home, "visibility", "check", "/dashboard/", "/properties/42?ref=home", "/admin")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "shown")
	assert.Contains(t, lines[1], "/properties/42")
	assert.Contains(t, lines[1], "shown")
	assert.Contains(t, lines[2], "hidden")

	out, err = runCLI(t, home, "visibility", "check", "--anonymous", "/dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "hidden")
}

func TestStatusCommand(t *testing.T) {
	home := t.TempDir()
	out, err := runCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Bridge:    ws://127.0.0.1:18790")
	assert.Contains(t, out, "deep link only")
	assert.NotContains(t, out, "Validation issues")

	require.NoError(t, os.MkdirAll(filepath.Join(home, "data"), 0o700))
	db, err := store.Open(filepath.Join(home, "data", "supportline.db"), logging.Nop())
	require.NoError(t, err)
	_, err = store.NewJournal(db).Record(context.Background(), hooks.EventFallbackTriggered, map[string]any{"channel": "deeplink"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err = runCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Recent failovers:")
	assert.Contains(t, out, "channel=deeplink")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("TRUE"))
	assert.Equal(t, false, parseValue("false"))
	assert.Equal(t, 42, parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "wss://chat.example.com", parseValue("wss://chat.example.com"))
	assert.Equal(t, "+351 912", parseValue("+351 912"))
}

func TestMaskSecrets(t *testing.T) {
	v := maskSecrets([]string{"secondary"}, map[string]any{"apiKey": "k", "controlUrl": "https://x"})
	assert.Equal(t, map[string]any{"apiKey": "********", "controlUrl": "https://x"}, v)
	assert.Equal(t, "", maskSecrets([]string{"profile", "token"}, ""))
}

// chatStack wires the full stack against cfg with in-memory storage.
func chatStack(t *testing.T, cfg config.Config, opener widget.Opener) (*stack, *chatSession, *bytes.Buffer) {
	t.Helper()
	log = logging.Nop()
	st, err := buildStack(context.Background(), cfg, ":memory:", opener, log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	var out bytes.Buffer
	return st, newChatSession(st.widget, st, &out), &out
}

// snapshot is safe to call from Eventually conditions.
func snapshot(st *stack) failover.Snapshot {
	snap, _ := st.widget.Snapshot()
	return snap
}

func TestChatAgainstBridge(t *testing.T) {
	srvCfg := config.Defaults().Server
	srvCfg.AgentName = "Marta"
	ts := httptest.NewServer(bridge.New(srvCfg, logging.Nop()).Handler())
	t.Cleanup(ts.Close)

	cfg := config.Defaults()
	cfg.Bridge.URL = "ws" + strings.TrimPrefix(ts.URL, "http")
	cfg.Bridge.Transports = []string{"websocket"}

	st, sess, out := chatStack(t, cfg, widget.OpenerFunc(func(string) error {
		t.Error("deep link opened while the bridge is up")
		return nil
	}))
	ctx := context.Background()

	sess.run(ctx, "/go /properties/42")
	assert.Contains(t, out.String(), "widget hidden")

	sess.run(ctx, "/open viewing")
	assert.Contains(t, out.String(), "not shown on this page")

	sess.run(ctx, "/login u-1 Ana ana@example.com")
	assert.Contains(t, out.String(), "logged in as Ana, widget shown")

	sess.run(ctx, "/open viewing")
	require.Eventually(t, func() bool { return snapshot(st).State == failover.StateLive }, 3*time.Second, 10*time.Millisecond)
	sess.flush()
	assert.Contains(t, out.String(), "system: Hi Ana!")

	sess.run(ctx, "Is parking included?")
	require.Eventually(t, func() bool {
		for _, m := range snapshot(st).Messages {
			if m.Origin == domain.OriginRemoteAgent {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
	sess.flush()
	assert.Contains(t, out.String(), "agent: Hi Ana, this is Marta")
	assert.NotContains(t, out.String(), "you: Is parking included?")

	assert.True(t, sess.run(ctx, "/quit"))
}

func TestChatFailsOverToDeepLink(t *testing.T) {
	dead := httptest.NewServer(nil)
	deadURL := "ws" + strings.TrimPrefix(dead.URL, "http")
	dead.Close()

	cfg := config.Defaults()
	cfg.Bridge.URL = deadURL
	cfg.Bridge.ConnectTimeoutMs = 500
	cfg.Failover.MaxAttempts = 2
	cfg.Failover.Backoff.InitialMs = 1
	cfg.Failover.Backoff.MaxMs = 5
	cfg.DeepLink.Phone = "+351 912 345 678"

	opened := make(chan string, 1)
	st, sess, out := chatStack(t, cfg, widget.OpenerFunc(func(url string) error {
		opened <- url
		return nil
	}))
	ctx := context.Background()

	sess.run(ctx, "/login u-2 Rui rui@example.com")
	sess.run(ctx, "/go /contact")
	sess.run(ctx, "/open")

	select {
	case url := <-opened:
		assert.True(t, strings.HasPrefix(url, "https://wa.me/351912345678?text="), url)
	case <-time.After(5 * time.Second):
		t.Fatal("deep link never opened")
	}

	snap := snapshot(st)
	assert.Equal(t, failover.StateFailedOver, snap.State)
	assert.Equal(t, domain.ChannelDeepLink, snap.Activation.Channel)
	assert.False(t, snap.PanelOpen)

	sess.flush()
	assert.Contains(t, out.String(), "system: "+config.DefaultFailoverNotice)

	journal := store.NewJournal(st.db)
	assert.Eventually(t, func() bool {
		n, err := journal.Count(ctx, hooks.EventDeepLinkOpened)
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestChatUnknownCommand(t *testing.T) {
	_, sess, out := chatStack(t, config.Defaults(), widget.PrintOpener{W: &bytes.Buffer{}})
	assert.False(t, sess.run(context.Background(), "/teleport"))
	assert.Contains(t, out.String(), "unknown command /teleport")
	assert.False(t, sess.run(context.Background(), "hello"))
	assert.Contains(t, out.String(), "! ")
}
