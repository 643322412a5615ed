package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matheus3301/hanger/internal/rpc"
)

func cmdChat(ctx context.Context, c *rpc.Client, args []string) {
	need(args, 1, "chat <ensure|send|messages|sessions|watch|watch-sessions>")
	switch args[0] {
	case "ensure":
		need(args, 3, "chat ensure <self> <other>")
		resp, err := c.Chat.EnsureChat(ctx, &rpc.EnsureChatRequest{SelfID: args[1], OtherID: args[2]})
		check(err)
		if jsonOut {
			outputJSON(resp)
			return
		}
		fmt.Println(resp.SessionID)
	case "send":
		need(args, 5, "chat send <session> <from> <to> <text>")
		resp, err := c.Chat.SendMessage(ctx, &rpc.SendMessageRequest{
			SessionID: args[1],
			FromID:    args[2],
			ToID:      args[3],
			Text:      strings.Join(args[4:], " "),
		})
		check(err)
		if jsonOut {
			outputJSON(resp)
			return
		}
		fmt.Printf("Sent %s\n", resp.Message.ID)
	case "messages":
		need(args, 2, "chat messages <session>")
		resp, err := c.Chat.ListMessages(ctx, &rpc.SessionRequest{SessionID: args[1]})
		check(err)
		printMessages(resp)
	case "sessions":
		need(args, 2, "chat sessions <viewer>")
		resp, err := c.Chat.ListUserSessions(ctx, &rpc.ViewerRequest{ViewerID: args[1]})
		check(err)
		printSessions(resp)
	case "watch":
		need(args, 2, "chat watch <session>")
		stream, err := c.Chat.WatchMessages(ctx, &rpc.SessionRequest{SessionID: args[1]})
		check(err)
		follow(ctx, stream, printMessages)
	case "watch-sessions":
		need(args, 2, "chat watch-sessions <viewer>")
		stream, err := c.Chat.WatchUserSessions(ctx, &rpc.ViewerRequest{ViewerID: args[1]})
		check(err)
		follow(ctx, stream, printSessions)
	default:
		fatalf("unknown chat subcommand: %s", args[0])
	}
}

// follow prints every snapshot until the stream ends or ctx is cancelled.
func follow[T any](ctx context.Context, stream *rpc.Stream[T], print func(*T)) {
	for {
		v, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			fatalf("%v", err)
		}
		print(v)
		if !jsonOut {
			fmt.Println("--")
		}
	}
}

func printMessages(l *rpc.MessageList) {
	if jsonOut {
		outputJSON(l)
		return
	}
	if len(l.Messages) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range l.Messages {
		fmt.Printf("%s  %-12s %s\n", formatMillis(m.CreatedAtUnix), m.From, m.Text)
	}
}

func printSessions(l *rpc.SessionList) {
	if jsonOut {
		outputJSON(l)
		return
	}
	if len(l.Sessions) == 0 {
		fmt.Println("No sessions.")
		return
	}
	for _, s := range l.Sessions {
		fmt.Fprintf(os.Stdout, "%-30s %-12s %s  %s\n", s.SessionID, s.OtherUserID, formatMillis(max(s.LastTs, s.UpdatedAt)), s.LastText)
	}
}
