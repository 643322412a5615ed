package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/hanger/internal/rpc"
)

func cmdPin(ctx context.Context, c *rpc.Client, args []string) {
	need(args, 1, "pin <create|delete|list|watch>")
	switch args[0] {
	case "create":
		need(args, 5, "pin create <owner> <lat> <lng> <shop|service>")
		lat, err := strconv.ParseFloat(args[2], 64)
		check(err)
		lng, err := strconv.ParseFloat(args[3], 64)
		check(err)
		resp, err := c.Pins.CreatePin(ctx, &rpc.CreatePinRequest{OwnerID: args[1], Lat: lat, Lng: lng, Label: args[4]})
		check(err)
		if jsonOut {
			outputJSON(resp)
			return
		}
		fmt.Println(resp.PinID)
	case "delete":
		need(args, 3, "pin delete <pin> <requester>")
		check(c.Pins.DeletePin(ctx, &rpc.DeletePinRequest{PinID: args[1], RequesterID: args[2]}))
		fmt.Println("Deleted.")
	case "list":
		need(args, 2, "pin list <owner>")
		resp, err := c.Pins.ListPinsByOwner(ctx, &rpc.OwnerRequest{OwnerID: args[1]})
		check(err)
		printPins(resp)
	case "watch":
		stream, err := c.Pins.WatchAllPins(ctx)
		check(err)
		follow(ctx, stream, printPins)
	default:
		fatalf("unknown pin subcommand: %s", args[0])
	}
}

func cmdFav(ctx context.Context, c *rpc.Client, args []string) {
	need(args, 2, "fav <add|remove|list> <viewer> [pin]")
	switch args[0] {
	case "add":
		need(args, 3, "fav add <viewer> <pin>")
		check(c.Pins.AddFavorite(ctx, &rpc.FavoriteRequest{ViewerID: args[1], PinID: args[2]}))
		fmt.Println("Saved.")
	case "remove":
		need(args, 3, "fav remove <viewer> <pin>")
		check(c.Pins.RemoveFavorite(ctx, &rpc.FavoriteRequest{ViewerID: args[1], PinID: args[2]}))
		fmt.Println("Removed.")
	case "list":
		resp, err := c.Pins.ListFavorites(ctx, &rpc.ViewerRequest{ViewerID: args[1]})
		check(err)
		if jsonOut {
			outputJSON(resp)
			return
		}
		if len(resp.Favorites) == 0 {
			fmt.Println("No favourites yet.")
			return
		}
		for _, f := range resp.Favorites {
			printPin(f.Pin)
		}
	default:
		fatalf("unknown fav subcommand: %s", args[0])
	}
}

func printPins(l *rpc.PinList) {
	if jsonOut {
		outputJSON(l)
		return
	}
	if len(l.Pins) == 0 {
		fmt.Println("No pins.")
		return
	}
	for _, p := range l.Pins {
		printPin(p)
	}
}

func printPin(p rpc.Pin) {
	fmt.Printf("%-36s %-8s %10.5f %10.5f  %s\n", p.ID, p.Label, p.Lat, p.Lng, p.OwnerID)
}
