// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/Thermoquad/nereid/pkg/triton"
	"github.com/spf13/cobra"
)

var (
	nodeListen        string
	nodeFailsafeMs    int
	nodeStatsInterval int
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a simulated actuator node",
	Long: `Run a node-side Triton link engine against a host controller.

The simulated node decodes inbound command frames, prints the applied channel
vector, acknowledges heartbeats, and drops to neutral when the link goes
silent past the failsafe timeout. Useful for exercising teleop, ping and
replay without real hardware.

With --listen the node binds a local UDP port and answers whichever host
speaks first; otherwise the shared connection flags are used.`,
	RunE: runNode,
}

func init() {
	rootCmd.AddCommand(nodeCmd)
	nodeCmd.Flags().StringVar(&nodeListen, "listen", "", "UDP listen address (e.g. :8888)")
	nodeCmd.Flags().IntVar(&nodeFailsafeMs, "failsafe-timeout", 500, "Failsafe timeout (milliseconds, 50 floor)")
	nodeCmd.Flags().IntVar(&nodeStatsInterval, "stats-interval", 10, "Statistics print interval (seconds)")
}

// udpServerConnection answers the most recent peer: the node side of a UDP
// link where the host dials in.
type udpServerConnection struct {
	conn *net.UDPConn

	mu   sync.Mutex
	peer *net.UDPAddr
}

func (u *udpServerConnection) Read(p []byte) (int, error) {
	n, addr, err := u.conn.ReadFromUDP(p)
	if err != nil {
		return n, err
	}
	u.mu.Lock()
	u.peer = addr
	u.mu.Unlock()
	return n, nil
}

func (u *udpServerConnection) Write(p []byte) (int, error) {
	u.mu.Lock()
	peer := u.peer
	u.mu.Unlock()
	if peer == nil {
		// No host yet; acks have nowhere to go
		return len(p), nil
	}
	return u.conn.WriteToUDP(p, peer)
}

func (u *udpServerConnection) Close() error {
	return u.conn.Close()
}

func openNodeConnection() (Connection, string, error) {
	if nodeListen != "" {
		addr, err := net.ResolveUDPAddr("udp", nodeListen)
		if err != nil {
			return nil, "", fmt.Errorf("invalid listen address %s: %v", nodeListen, err)
		}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to bind %s: %v", nodeListen, err)
		}
		return &udpServerConnection{conn: conn}, fmt.Sprintf("UDP listen: %s", nodeListen), nil
	}
	return OpenConnection()
}

func runNode(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := openNodeConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Nereid - Simulated Node\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Failsafe timeout: %dms\n", nodeFailsafeMs)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Throttle duty printing so a 50Hz command stream stays readable
	var lastPrint time.Time
	apply := func(norm [triton.NumChannels]float64) error {
		if time.Since(lastPrint) < 250*time.Millisecond {
			return nil
		}
		lastPrint = time.Now()
		line := "apply:"
		for i, v := range norm {
			line += fmt.Sprintf(" CH%d=%+.2f", i+1, v)
		}
		fmt.Println(line)
		return nil
	}

	engine := triton.NewEngine(triton.EngineConfig{
		FailsafeTimeout: time.Duration(nodeFailsafeMs) * time.Millisecond,
		Apply:           apply,
		AckWriter:       conn,
	})

	// Receive goroutine: raw chunks in, no parsing
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if err == ErrConnectionClosed {
					return
				}
				log.Printf("Read error: %v", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			engine.FeedBytes(buf[:n])
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	processTicker := time.NewTicker(5 * time.Millisecond)
	defer processTicker.Stop()
	linkTicker := time.NewTicker(20 * time.Millisecond)
	defer linkTicker.Stop()
	statsTicker := time.NewTicker(time.Duration(nodeStatsInterval) * time.Second)
	defer statsTicker.Stop()

	lastState := engine.LinkState()
	for {
		select {
		case <-processTicker.C:
			if err := engine.Process(time.Now()); err != nil {
				log.Printf("Dispatch error: %v", err)
			}

		case <-linkTicker.C:
			state := engine.PollLink(time.Now())
			if state != lastState {
				if state == triton.LinkFailsafe {
					fmt.Printf("\n*** FAILSAFE: link silent, channels to neutral ***\n\n")
				} else {
					fmt.Printf("\n*** LINK RESTORED ***\n\n")
				}
				lastState = state
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(engine.Stats().String())
			fmt.Println()

		case <-sigChan:
			fmt.Printf("\nShutting down, forcing failsafe.\n")
			engine.ForceFailsafe()
			fmt.Print(engine.Stats().String())
			return nil
		}
	}
}
