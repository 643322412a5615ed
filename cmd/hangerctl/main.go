package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/hanger/internal/instance"
	"github.com/matheus3301/hanger/internal/lock"
	"github.com/matheus3301/hanger/internal/rpc"
)

var jsonOut bool

func main() {
	instanceFlag := flag.String("instance", "", "instance name (overrides config default)")
	flag.BoolVar(&jsonOut, "json", false, "output in JSON format")
	timeout := flag.Duration("timeout", 10*time.Second, "deadline for unary calls")
	flag.Parse()

	name := instance.Resolve(*instanceFlag)
	if err := instance.ValidateName(name); err != nil {
		fatalf("%v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "status" {
		cmdStatus(name)
		return
	}

	c, err := rpc.Dial(instance.SocketPath(name))
	if err != nil {
		fatalf("cannot connect to daemon for instance %q: %v", name, err)
	}
	defer func() { _ = c.Close() }()

	// Watches run until interrupted; everything else gets a deadline.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if !isWatch(args) {
		deadline := *timeout
		if (args[0] == "upload" || args[0] == "profile") && !flagSet("timeout") {
			// Uploads retry with backoff across two phases.
			deadline = 3 * time.Minute
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	switch args[0] {
	case "chat":
		cmdChat(ctx, c, args[1:])
	case "pin":
		cmdPin(ctx, c, args[1:])
	case "fav":
		cmdFav(ctx, c, args[1:])
	case "upload":
		cmdUpload(ctx, c, args[1:])
	case "profile":
		cmdProfile(ctx, c, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func isWatch(args []string) bool {
	return len(args) >= 2 && (args[1] == "watch" || args[1] == "watch-sessions")
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: hangerctl [--instance <name>] [--json] [--timeout <d>] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                                  Show instance and daemon state")
	fmt.Fprintln(os.Stderr, "  chat ensure <self> <other>              Open (or reopen) a chat session")
	fmt.Fprintln(os.Stderr, "  chat send <session> <from> <to> <text>  Send a message")
	fmt.Fprintln(os.Stderr, "  chat messages <session>                 List messages")
	fmt.Fprintln(os.Stderr, "  chat sessions <viewer>                  List a user's sessions")
	fmt.Fprintln(os.Stderr, "  chat watch <session>                    Follow a session's messages")
	fmt.Fprintln(os.Stderr, "  chat watch-sessions <viewer>            Follow a user's session list")
	fmt.Fprintln(os.Stderr, "  pin create <owner> <lat> <lng> <label>  Drop a pin (label: shop|service)")
	fmt.Fprintln(os.Stderr, "  pin delete <pin> <requester>            Delete your pin")
	fmt.Fprintln(os.Stderr, "  pin list <owner>                        List a user's pins")
	fmt.Fprintln(os.Stderr, "  pin watch                               Follow all pins")
	fmt.Fprintln(os.Stderr, "  fav add|remove <viewer> <pin>           Save or unsave a pin")
	fmt.Fprintln(os.Stderr, "  fav list <viewer>                       List saved pins")
	fmt.Fprintln(os.Stderr, "  upload <file>                           Upload an image, print its URL")
	fmt.Fprintln(os.Stderr, "  profile get <uid>                       Show a profile")
	fmt.Fprintln(os.Stderr, "  profile save <uid> <draft.toml>         Validate, upload and save a profile")
	fmt.Fprintln(os.Stderr, "  profile card <uid> <out.png>            Write the profile QR card")
}

func cmdStatus(name string) {
	pid := lock.Holder(instance.LockPath(name))
	state := map[string]any{
		"instance": name,
		"dir":      instance.Dir(name),
		"socket":   instance.SocketPath(name),
		"running":  pid != 0,
		"pid":      pid,
	}
	if jsonOut {
		outputJSON(state)
		return
	}
	fmt.Printf("Instance: %s\n", name)
	fmt.Printf("Dir:      %s\n", instance.Dir(name))
	if pid != 0 {
		fmt.Printf("Daemon:   running (pid %d)\n", pid)
	} else {
		fmt.Println("Daemon:   stopped")
	}
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: hangerctl %s\n", usage)
		os.Exit(1)
	}
}

func check(err error) {
	if err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", a...)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
