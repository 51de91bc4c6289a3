// Command chatcli is a terminal front end for the chat socket. Each line read
// from stdin is sent as one message; replies are printed as they arrive.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/internal/chatclient"
	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/api/ws/chat", "chat socket URL")
		userID    = flag.String("user", "", "user id to chat as (required)")
		token     = flag.String("token", os.Getenv("CHAT_TOKEN"), "bearer token when the server requires auth")
		reconnect = flag.Duration("reconnect", chatclient.DefaultReconnectDelay, "delay before reconnecting after an abnormal close")
		debug     = flag.Bool("debug", false, "log connection events")
	)
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "chatcli: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	log := logger.NewNop()
	if *debug {
		var err error
		if log, err = logger.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
	}

	header := http.Header{}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}

	client := chatclient.New(*url,
		chatclient.WithUserID(*userID),
		chatclient.WithHeader(header),
		chatclient.WithReconnectDelay(*reconnect),
		chatclient.WithLogger(log),
		chatclient.WithMessageHandler(printReply),
		chatclient.WithErrorHandler(func(err error) {
			log.Warn("chat error", zap.Error(err))
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := client.Init(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "chatcli: initial connection failed, retrying in the background")
	}
	defer client.Dispose()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("chatting as %s, Ctrl-D to quit\n", *userID)
	for {
		select {
		case <-quit:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := client.SendMessage(line); err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
		}
	}
}

func printReply(msg model.ServerMessage) {
	if msg.Message != nil {
		fmt.Printf("assistant> %s\n", msg.Message.Content)
	}
	if msg.Error != "" {
		line := "! " + msg.Error
		if msg.ErrorCode != "" {
			line += " (" + msg.ErrorCode + ")"
		}
		if msg.Details != "" {
			line += ": " + msg.Details
		}
		fmt.Fprintln(os.Stderr, line)
	}
}
