package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// message mirrors the daemon's websocket envelope.
type message struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type params struct {
	CPI       int  `json:"cpi"`
	AngleSnap bool `json:"angle_snap"`
	LiftOff   int  `json:"lift_off"`
}

type output struct {
	Left     bool `json:"left"`
	Right    bool `json:"right"`
	Override bool `json:"override"`
	DX       int  `json:"dx"`
	DY       int  `json:"dy"`
}

type frame struct {
	Tick      uint32 `json:"tick"`
	Output    output `json:"output"`
	DX        int    `json:"dx"`
	DY        int    `json:"dy"`
	State     string `json:"state"`
	Animation string `json:"animation"`
	Params    params `json:"params"`
}

type stateInit struct {
	Tick        uint32 `json:"tick"`
	State       string `json:"state"`
	Animation   string `json:"animation"`
	Destination string `json:"destination"`
	Params      params `json:"params"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws/state", "optimouse-sim state websocket URL")
		raw   = flag.Bool("raw", false, "Print messages as received instead of summaries")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	// Handle shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	// The server pings every 20s; answer them and keep our own deadline.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			switch messageType {
			case websocket.TextMessage:
				if *raw {
					fmt.Printf("%s\n", string(msg))
					continue
				}
				handleTextMessage(msg)
			case websocket.BinaryMessage:
				fmt.Printf("[BINARY] %d bytes\n", len(msg))
			}
		}
	}()

	// Wait for shutdown signal or connection close
	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints a one-line summary of a state message.
func handleTextMessage(raw []byte) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		fmt.Printf("[TEXT] %s\n", string(raw))
		return
	}

	switch msg.Type {
	case "state_init":
		var s stateInit
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			break
		}
		fmt.Printf("[INIT] tick=%d state=%s anim=%s dest=%s cpi=%d angle_snap=%t lift_off=%d\n",
			s.Tick, s.State, s.Animation, s.Destination, s.Params.CPI, s.Params.AngleSnap, s.Params.LiftOff)
		return

	case "frame":
		var f frame
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			break
		}
		fmt.Printf("[FRAME] tick=%d state=%s anim=%s l=%t r=%t override=%t dx=%d dy=%d\n",
			f.Tick, f.State, f.Animation, f.Output.Left, f.Output.Right, f.Output.Override, f.DX, f.DY)
		return

	case "params_changed":
		var p struct {
			Params params `json:"params"`
		}
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			break
		}
		fmt.Printf("[PARAMS] cpi=%d angle_snap=%t lift_off=%d\n", p.Params.CPI, p.Params.AngleSnap, p.Params.LiftOff)
		return
	}

	// Pretty print anything else
	var jsonData map[string]any
	if err := json.Unmarshal(raw, &jsonData); err != nil {
		fmt.Printf("[TEXT] %s\n", string(raw))
		return
	}
	prettyJSON, _ := json.MarshalIndent(jsonData, "", "  ")
	fmt.Printf("[MESSAGE]\n%s\n\n", string(prettyJSON))
}
