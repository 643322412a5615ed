package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/hanger/internal/bus"
	"github.com/matheus3301/hanger/internal/config"
	"github.com/matheus3301/hanger/internal/instance"
	"github.com/matheus3301/hanger/internal/lock"
	"github.com/matheus3301/hanger/internal/rpc"
	"github.com/matheus3301/hanger/internal/upload"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func shortHome(t *testing.T) string {
	t.Helper()
	// Short path to avoid the 104-char Unix socket limit on macOS.
	dir, err := os.MkdirTemp("/tmp", "hanger-d-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv(instance.HomeEnv, dir)
	return dir
}

func TestDaemonLifecycle(t *testing.T) {
	shortHome(t)

	cfg := config.Default()
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.LogLevel = "warn"

	var ms *MetricsServer
	app := fxtest.New(t,
		Module(Params{InstanceName: "test", Config: cfg}),
		fx.Populate(&ms),
	)
	app.RequireStart()
	stopped := false
	defer func() {
		if !stopped {
			app.RequireStop()
		}
	}()

	// The instance is locked while the daemon runs.
	if _, err := lock.Acquire(instance.LockPath("test")); err == nil {
		t.Fatal("second Acquire() should fail while daemon runs")
	}

	c, err := rpc.Dial(instance.SocketPath("test"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ensured, err := c.Chat.EnsureChat(ctx, &rpc.EnsureChatRequest{SelfID: "u1", OtherID: "u2"})
	if err != nil {
		t.Fatalf("EnsureChat error = %v", err)
	}
	if ensured.SessionID != "u1_u2" {
		t.Errorf("session id = %q, want u1_u2", ensured.SessionID)
	}
	if _, err := c.Chat.SendMessage(ctx, &rpc.SendMessageRequest{SessionID: ensured.SessionID, FromID: "u1", ToID: "u2", Text: "hello"}); err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}

	// No client id configured: uploads fail fast instead of hitting the network.
	_, err = c.Media.UploadAsset(ctx, &rpc.UploadAssetRequest{Asset: rpc.Asset{Name: "a.png", Data: []byte{1}}})
	if code := grpcstatus.Code(err); code != codes.FailedPrecondition {
		t.Errorf("UploadAsset code = %v, want FailedPrecondition", code)
	}

	resp, err := http.Get("http://" + ms.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "hanger_chat_messages_sent_total 1") {
		t.Errorf("metrics missing sent message counter:\n%s", body)
	}

	app.RequireStop()
	stopped = true

	if _, err := os.Stat(instance.SocketPath("test")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket not removed on stop: %v", err)
	}
	lk, err := lock.Acquire(instance.LockPath("test"))
	if err != nil {
		t.Fatalf("lock not released on stop: %v", err)
	}
	_ = lk.Release()

	if _, err := os.Stat(instance.AppDBPath("test")); err != nil {
		t.Errorf("store not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(instance.LogDir("test"), "hangerd.log")); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestMetricsServerDisabled(t *testing.T) {
	ms, err := NewMetricsServer("", nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if ms != nil {
		t.Fatal("expected nil server for empty address")
	}
	ms.Start()
	ms.Stop(context.Background())
	if ms.Addr() != "" {
		t.Error("Addr() of disabled server should be empty")
	}
}

func TestLogUploadEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	b := bus.New()
	stop := logUploadEvents(b, zap.New(core))

	b.Publish(bus.Event{
		Kind:    bus.UploadPhaseChanged,
		Payload: upload.PhaseChange{UploadID: "up-1", From: upload.Primary, To: upload.Fallback},
	})

	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessage("upload phase changed").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("phase change was not logged")
		}
		time.Sleep(10 * time.Millisecond)
	}
	entry := logs.FilterMessage("upload phase changed").All()[0]
	if got := entry.ContextMap()["to"]; got != "FALLBACK" {
		t.Errorf("to = %v, want FALLBACK", got)
	}

	stop()
	if b.Len() != 0 {
		t.Errorf("subscription not released, Len() = %d", b.Len())
	}
}
