package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxelcolony/internal/observerproto"
	"voxelcolony/internal/sim/colony"
	"voxelcolony/internal/sim/runtime"
	"voxelcolony/internal/sim/world"
)

func newTestServer(t *testing.T) (*httptest.Server, *runtime.Sim) {
	t.Helper()

	store := world.NewChunkStore(world.Gen{Seed: 7, SizeX: 32, SizeZ: 32, Height: 16})
	sim := runtime.New(runtime.Config{WorldID: "test", TickRateHz: 200, Workers: 1}, store, colony.Params{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sim.Run(ctx) }()

	srv := NewServer(sim, nil, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", srv.WSHandler())
	mux.HandleFunc("/v1/tasks", srv.TasksHandler())
	mux.HandleFunc("/v1/admin/audits", srv.AuditsHandler())

	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, sim
}

func TestBootstrapHandler(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.ProtocolVersion != observerproto.Version {
		t.Fatalf("protocol version = %q", boot.ProtocolVersion)
	}
	if boot.WorldID != "test" {
		t.Fatalf("world id = %q", boot.WorldID)
	}
	if len(boot.BlockPalette) == 0 || boot.BlockPalette[0] != "AIR" {
		t.Fatalf("palette = %v", boot.BlockPalette)
	}
}

func TestTasksHandler_Designate(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(observerproto.DesignateRequest{
		Kind: "DIG",
		Pos:  [3]int{10, 3, 10},
	})
	resp, err := http.Post(ts.URL+"/v1/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var dr observerproto.DesignateResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dr.TaskID == 0 {
		t.Fatalf("task id = 0, want assigned id")
	}
}

func TestTasksHandler_RejectsUnknownKind(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/tasks", "application/json", strings.NewReader(`{"kind":"FLY","pos":[0,0,0]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTasksHandler_RejectsUnknownMaterial(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/tasks", "application/json", strings.NewReader(`{"kind":"PLACE","pos":[0,0,0],"material":"UNOBTANIUM"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWSHandler_SurfaceThenFrames(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub, _ := json.Marshal(observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		SendSurface:     true,
	})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sawSurface := false
	sawFrame := false
	deadline := time.Now().Add(5 * time.Second)
	for (!sawSurface || !sawFrame) && time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			t.Fatalf("bad message: %v", err)
		}
		switch head.Type {
		case observerproto.TypeSurface:
			var sm observerproto.SurfaceMsg
			if err := json.Unmarshal(raw, &sm); err != nil {
				t.Fatalf("surface: %v", err)
			}
			if len(sm.Chunks) == 0 {
				t.Fatalf("surface has no chunks")
			}
			sawSurface = true
		case observerproto.TypeFrame:
			var fm observerproto.FrameMsg
			if err := json.Unmarshal(raw, &fm); err != nil {
				t.Fatalf("frame: %v", err)
			}
			if len(fm.Workers) != 1 {
				t.Fatalf("frame workers = %d, want 1", len(fm.Workers))
			}
			sawFrame = true
		}
	}
	if !sawSurface || !sawFrame {
		t.Fatalf("surface=%v frame=%v before deadline", sawSurface, sawFrame)
	}
}

func TestWSHandler_RejectsBadHandshake(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after bad handshake")
	}
}

func TestAuditsHandler_DisabledWithoutIndex(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/admin/audits")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
