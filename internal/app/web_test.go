package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/touch_controller/internal/zone"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestWeb(t *testing.T) (*webServer, *httptest.Server, chan Command) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>touch</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := make(chan Command, 4)
	s := newWebServer(func(cmd Command) error {
		if err := checkCommand(cmd); err != nil {
			return err
		}
		got <- cmd
		return nil
	})
	ts := httptest.NewServer(s.routes(dir))
	t.Cleanup(ts.Close)
	return s, ts, got
}

func TestWebStatus(t *testing.T) {
	s, ts, _ := newTestWeb(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status before data = %d", resp.StatusCode)
	}

	s.setStatus(Status{Mode: 16, Calibrated: true, Sensitivity: 50, Raw: []uint16{1, 2}})
	resp, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Mode != 16 || !st.Calibrated || len(st.Raw) != 2 {
		t.Fatalf("status = %+v", st)
	}

	resp, err = http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("static index = %d", resp.StatusCode)
	}
}

func TestWebCommand(t *testing.T) {
	_, ts, got := newTestWeb(t)

	resp, err := http.Post(ts.URL+"/api/command", "application/json", strings.NewReader(`{"action":"sensitivity","value":70}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("command status = %d", resp.StatusCode)
	}
	if cmd := <-got; cmd.Action != "sensitivity" || cmd.Value != 70 {
		t.Fatalf("forwarded %+v", cmd)
	}

	for _, body := range []string{`{"action":"reboot"}`, `{"action":"sensitivity","value":300}`, `not json`} {
		resp, err := http.Post(ts.URL+"/api/command", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", body, resp.StatusCode)
		}
	}
}

func TestWebSocket(t *testing.T) {
	s, ts, got := newTestWeb(t)
	s.setStatus(Status{Mode: 32})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// The initial status also proves the socket is registered with the hub.
	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "status" {
		t.Fatalf("first message type = %q", f.Type)
	}

	s.hub.broadcast(WSResponse{Type: "zone", Data: ZoneEvent{Zone: 5, State: zone.DoublePress, Raw: 900}})
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	var ev ZoneEvent
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		t.Fatal(err)
	}
	if f.Type != "zone" || ev.Zone != 5 || ev.State != zone.DoublePress {
		t.Fatalf("broadcast = %s %+v", f.Type, ev)
	}

	if err := conn.WriteJSON(WSMessage{Action: "calibrate"}); err != nil {
		t.Fatal(err)
	}
	select {
	case cmd := <-got:
		if cmd.Action != "calibrate" {
			t.Fatalf("forwarded %+v", cmd)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("command not forwarded")
	}

	if err := conn.WriteJSON(WSMessage{Action: "explode"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "error" || f.Message == "" {
		t.Fatalf("reply = %+v", f)
	}
}
