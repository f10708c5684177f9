// Command eventtail logs in, opens the realtime event stream and prints events.
// With -clients > 1 it doubles as a connection load test.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks connection and delivery counts across clients.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
	Errors               int64
}

var metrics Metrics

type event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	host := flag.String("host", "localhost:5000", "API server host")
	email := flag.String("email", "sam@tutorx.dev", "Account email")
	password := flag.String("password", "password123", "Account password")
	clients := flag.Int("clients", 1, "Number of concurrent connections")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	quiet := flag.Bool("quiet", false, "Only print the summary")
	flag.Parse()

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	log.Printf("logged in as %s, opening %d connection(s) to %s", *email, *clients, *host)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, token, i, !*quiet, stop, &wg)
		if *clients > 1 {
			// Tickets are rate limited by the auth stack; stagger issuance.
			time.Sleep(20 * time.Millisecond)
		}
	}

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}
	select {
	case <-deadline:
		log.Println("duration reached")
	case <-interrupt:
		log.Println("interrupted")
	}

	close(stop)
	wg.Wait()
	printMetrics()
}

func login(host, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(fmt.Sprintf("http://%s/api/auth/login", host), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func getTicket(host, token string) (string, error) {
	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s/api/ws/ticket", host), nil)
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}
	var result struct {
		Data struct {
			Ticket string `json:"ticket"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.Ticket, nil
}

func runClient(host, token string, id int, verbose bool, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := getTicket(host, token)
	if err != nil {
		log.Printf("client %d: %v", id, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: "ticket=" + url.QueryEscape(ticket)}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Printf("client %d: dial: %v", id, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
			if !verbose {
				continue
			}
			var ev event
			if err := json.Unmarshal(raw, &ev); err != nil {
				log.Printf("client %d: undecodable frame: %s", id, raw)
				continue
			}
			log.Printf("client %d: %-16s %s", id, ev.Type, ev.Payload)
		}
	}()

	select {
	case <-stop:
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	case <-done:
		log.Printf("client %d: server closed the stream", id)
	}
}

func printMetrics() {
	log.Printf("connections: attempted=%d ok=%d failed=%d",
		metrics.ConnectionsAttempted, metrics.ConnectionsSuccess, metrics.ConnectionsFailed)
	log.Printf("events received=%d errors=%d", metrics.EventsReceived, metrics.Errors)
}
