// Package main provides a simple CLI client for the chat gateway.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/internal/protocol"
	"github.com/xiaot623/roadchat/internal/session"
)

// Client represents a WebSocket client.
type Client struct {
	conn   *websocket.Conn
	chatID string
	done   chan struct{}
}

// NewClient connects to the gateway presenting cookie as the session.
func NewClient(addr, cookieName, cookie string) (*Client, error) {
	header := http.Header{}
	header.Set("Cookie", cookieName+"="+cookie)

	conn, resp, err := websocket.DefaultDialer.Dial(addr, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *Client) send(t domain.EventType, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(protocol.Envelope{
		Type:      t,
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		Data:      payload,
	})
}

// SendMessage posts text to the current chat.
func (c *Client) SendMessage(text string) error {
	return c.send(domain.EventTypeMessage, domain.AddMessageRequest{ChatID: c.chatID, Message: text})
}

// EditMessage replaces the body of one of our messages.
func (c *Client) EditMessage(messageID, text string) error {
	return c.send(domain.EventTypeEdit, domain.EditMessageRequest{ChatID: c.chatID, MessageID: messageID, NewMessage: text})
}

// DeleteMessage soft-deletes one of our messages.
func (c *Client) DeleteMessage(messageID string) error {
	return c.send(domain.EventTypeDelete, domain.DeleteMessageRequest{ChatID: c.chatID, MessageID: messageID})
}

// ReadMessages reads and prints frames from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}
			formatted, _ := json.MarshalIndent(frame, "", "  ")
			fmt.Printf("\n[%v] Received:\n%s\n> ", frame["type"], string(formatted))
		}
	}
}

func (c *Client) handleInput(input string) error {
	cmd, rest, _ := strings.Cut(input, " ")
	switch cmd {
	case "/chat":
		c.chatID = strings.TrimSpace(rest)
		fmt.Printf("Current chat: %s\n", c.chatID)
		return nil
	case "/edit":
		messageID, text, ok := strings.Cut(strings.TrimSpace(rest), " ")
		if !ok {
			return fmt.Errorf("usage: /edit <messageId> <text>")
		}
		return c.EditMessage(messageID, text)
	case "/delete":
		return c.DeleteMessage(strings.TrimSpace(rest))
	}
	if c.chatID == "" {
		return fmt.Errorf("select a chat first with /chat <chatId>")
	}
	return c.SendMessage(input)
}

func main() {
	addr := flag.String("addr", "ws://localhost:3000/ws", "WebSocket server address")
	cookieName := flag.String("cookie-name", "sessionId", "Session cookie name")
	cookie := flag.String("cookie", "", "Signed session cookie value")
	token := flag.String("token", "", "Unsigned session token, signed locally with -secret")
	secret := flag.String("secret", os.Getenv("COOKIE_SECRET"), "Cookie secret used with -token")
	chatID := flag.String("chat", "", "Initial chat id")
	flag.Parse()

	log.SetFlags(log.Ltime)

	value := *cookie
	if value == "" && *token != "" {
		value = session.NewSigner(*secret).Sign(*token)
	}
	if value == "" {
		log.Fatal("either -cookie or -token is required")
	}

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr, *cookieName, value)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()
	client.chatID = *chatID

	fmt.Println("Connected.")
	fmt.Println("Type a message and press Enter to send.")
	fmt.Println("Commands: /chat <id>, /edit <messageId> <text>, /delete <messageId>, /quit")

	// Start reading messages in background
	go client.ReadMessages()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			if err := client.handleInput(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
