// Package main provides a CI-friendly smoke test for a running nanochat
// server.
//
// It validates:
//   - sign-up and sign-in for two fresh accounts
//   - invite -> accept handshake
//   - WebSocket subscribe with a token query parameter
//   - send message -> realtime push to the recipient
//   - message history fetch with keyset parameters
package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type authedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type storedMessage struct {
	ID          int32  `json:"id"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

type account struct {
	user  authedUser
	token string
}

func main() {
	var (
		base    = flag.String("base", "http://127.0.0.1:8080", "nanochat base URL")
		timeout = flag.Duration("timeout", 10*time.Second, "per-step timeout")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	if _, err := url.Parse(*base); err != nil {
		fatalf("invalid -base: %v", err)
	}

	s := smoke{base: strings.TrimRight(*base, "/"), timeout: *timeout, verbose: *verbose}

	alice := s.mustSignUpAndIn("smoke-alice-" + randomSuffix())
	bob := s.mustSignUpAndIn("smoke-bob-" + randomSuffix())
	s.logf("accounts ready: %s, %s", alice.user.Username, bob.user.Username)

	s.mustPost(alice.token, "/users/"+bob.user.ID+"/invite",
		map[string]string{"publicKey": randomKeyHex()}, nil)
	s.mustPost(bob.token, "/users/"+alice.user.ID+"/accept",
		map[string]string{"publicKey": randomKeyHex()}, nil)
	s.logf("handshake complete")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	wsURL := strings.Replace(s.base, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(bob.token)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	s.logf("websocket connected")

	content := hex.EncodeToString([]byte("smoke " + time.Now().Format(time.RFC3339)))
	var sent storedMessage
	s.mustPost(alice.token, "/messages/",
		map[string]string{"recipientId": bob.user.ID, "content": content}, &sent)
	s.logf("message %d stored", sent.ID)

	var pushed storedMessage
	if err := wsjson.Read(ctx, conn, &pushed); err != nil {
		fatalf("websocket read: %v", err)
	}
	if pushed.ID != sent.ID || pushed.Content != content {
		fatalf("push mismatch: got id=%d content=%s, want id=%d content=%s",
			pushed.ID, pushed.Content, sent.ID, content)
	}
	s.logf("realtime push received")

	var page []storedMessage
	s.mustGet(bob.token, fmt.Sprintf("/users/%s/messages?startTimestamp=%d&startId=%d&limit=10",
		alice.user.ID, time.Now().Add(time.Hour).Unix(), sent.ID+1), &page)
	if len(page) == 0 {
		fatalf("history fetch returned no messages")
	}
	s.logf("history fetch ok (%d messages)", len(page))

	fmt.Println("smoke test passed")
}

type smoke struct {
	base    string
	timeout time.Duration
	verbose bool
}

func (s smoke) logf(format string, args ...any) {
	if s.verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func (s smoke) mustSignUpAndIn(username string) account {
	const password = "smoke test password 1!"

	var user authedUser
	s.mustPost("", "/auth/signup", map[string]string{
		"username":      username,
		"password":      password,
		"passwordCheck": password,
	}, &user)

	var tok tokenResponse
	s.mustPost("", "/auth/signin", map[string]string{
		"username": username,
		"password": password,
	}, &tok)

	return account{user: user, token: tok.Token}
}

func (s smoke) mustPost(token, path string, body any, out any) {
	payload, err := json.Marshal(body)
	if err != nil {
		fatalf("marshal %s body: %v", path, err)
	}
	s.mustDo(http.MethodPost, token, path, bytes.NewReader(payload), out)
}

func (s smoke) mustGet(token, path string, out any) {
	s.mustDo(http.MethodGet, token, path, nil, out)
}

func (s smoke) mustDo(method, token, path string, body *bytes.Reader, out any) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, s.base+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.base+path, nil)
	}
	if err != nil {
		fatalf("build %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fatalf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			fatalf("decode %s %s response: %v", method, path, err)
		}
	}
}

// randomSuffix returns letters only; usernames reject digits.
func randomSuffix() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		fatalf("rand: %v", err)
	}
	for i, b := range raw {
		raw[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(raw)
}

func randomKeyHex() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		fatalf("rand: %v", err)
	}
	return hex.EncodeToString(raw)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ws-smoke: "+format+"\n", args...)
	os.Exit(1)
}
