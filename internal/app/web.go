package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/touch_controller/internal/air"
	"github.com/relabs-tech/touch_controller/internal/config"
	"github.com/relabs-tech/touch_controller/internal/touch"
)

var validActions = map[string]bool{
	"calibrate":       true,
	"cancel":          true,
	"sensitivity":     true,
	"air_sensitivity": true,
	"status":          true,
}

type webServer struct {
	mu         sync.RWMutex
	status     Status
	haveStatus bool

	hub  *hub
	send func(Command) error
}

func newWebServer(send func(Command) error) *webServer {
	return &webServer{hub: newHub(), send: send}
}

func (s *webServer) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.haveStatus = true
	s.mu.Unlock()
	s.hub.broadcast(WSResponse{Type: "status", Data: st})
}

func (s *webServer) lastStatus() (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.haveStatus
}

func (s *webServer) routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// JSON API endpoint: latest controller status
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		st, ok := s.lastStatus()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, st)
	})

	// Raw values next to the thresholds they are compared against
	mux.HandleFunc("GET /api/raw", func(w http.ResponseWriter, r *http.Request) {
		st, ok := s.lastStatus()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]interface{}{
			"raw":       st.Raw,
			"single":    st.Single,
			"double":    st.Double,
			"baselines": st.Baselines,
		})
	})

	mux.HandleFunc("POST /api/command", func(w http.ResponseWriter, r *http.Request) {
		var cmd Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, "invalid command: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.send(cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/ws", s.handleWS)

	// Static files as the root
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func checkCommand(cmd Command) error {
	if !validActions[cmd.Action] {
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	if cmd.Action == "sensitivity" && (cmd.Value < 0 || cmd.Value > touch.MaxSensitivity) {
		return fmt.Errorf("sensitivity must be 0-%d", touch.MaxSensitivity)
	}
	return nil
}

// RunWeb bridges the controller's MQTT topics to a browser dashboard.
func RunWeb() error {
	cfg := config.Get()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	pub := mqttPublisher{client: client}
	srv := newWebServer(func(cmd Command) error {
		if err := checkCommand(cmd); err != nil {
			return err
		}
		return pub.Publish(cfg.TopicCommand, false, cmd)
	})

	// 2) Subscribe to controller topics and push them to the browsers
	if err := subscribeJSON(client, cfg.TopicStatus, srv.setStatus); err != nil {
		return err
	}
	err := subscribeJSON(client, cfg.TopicZones, func(ev ZoneEvent) {
		srv.hub.broadcast(WSResponse{Type: "zone", Data: ev})
	})
	if err != nil {
		return err
	}
	err = subscribeJSON(client, cfg.TopicCalibration, func(ev touch.PhaseEvent) {
		srv.hub.broadcast(WSResponse{Type: "calibration", Data: ev})
	})
	if err != nil {
		return err
	}
	err = subscribeJSON(client, cfg.TopicAir, func(r air.Reading) {
		srv.hub.broadcast(WSResponse{Type: "air", Data: r})
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.routes("web")); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
