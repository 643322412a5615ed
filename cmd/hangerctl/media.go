package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/hanger/internal/rpc"
)

func cmdUpload(ctx context.Context, c *rpc.Client, args []string) {
	need(args, 1, "upload <file>")
	asset, err := readAsset(args[0])
	check(err)
	resp, err := c.Media.UploadAsset(ctx, &rpc.UploadAssetRequest{Asset: asset})
	check(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Println(resp.URL)
}

// draftFile is the on-disk form of a profile draft. Image paths are
// relative to the draft file.
type draftFile struct {
	Name           string `toml:"name"`
	Nickname       string `toml:"nickname"`
	Institute      string `toml:"institute"`
	Location       string `toml:"location"`
	BloodGroup     string `toml:"blood_group"`
	Aesthetic      string `toml:"aesthetic"`
	Bio            string `toml:"bio"`
	DoorKnob       string `toml:"door_knob"`
	DoorKnobPreset string `toml:"door_knob_preset"`
	Clothing       []struct {
		Kind string `toml:"kind"`
		Path string `toml:"path"`
	} `toml:"clothing"`
}

func cmdProfile(ctx context.Context, c *rpc.Client, args []string) {
	need(args, 2, "profile <get|save|card> <uid> ...")
	uid := args[1]
	switch args[0] {
	case "get":
		resp, err := c.Media.GetProfile(ctx, &rpc.UserRequest{UID: uid})
		check(err)
		if !resp.Found {
			fatalf("no profile for %s", uid)
		}
		printProfile(resp.Profile)
	case "save":
		need(args, 3, "profile save <uid> <draft.toml>")
		req, err := loadDraft(uid, args[2])
		check(err)
		resp, err := c.Media.SaveProfile(ctx, req)
		check(err)
		printProfile(resp.Profile)
	case "card":
		need(args, 3, "profile card <uid> <out.png>")
		resp, err := c.Media.ProfileCard(ctx, &rpc.ProfileCardRequest{UID: uid})
		check(err)
		check(os.WriteFile(args[2], resp.PNG, 0644))
		fmt.Printf("Wrote %s (%s)\n", args[2], resp.URL)
	default:
		fatalf("unknown profile subcommand: %s", args[0])
	}
}

func loadDraft(uid, path string) (*rpc.SaveProfileRequest, error) {
	var d draftFile
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	base := filepath.Dir(path)
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	req := &rpc.SaveProfileRequest{
		UID:            uid,
		Name:           d.Name,
		Nickname:       d.Nickname,
		Institute:      d.Institute,
		Location:       d.Location,
		BloodGroup:     d.BloodGroup,
		Aesthetic:      d.Aesthetic,
		Bio:            d.Bio,
		DoorKnobPreset: d.DoorKnobPreset,
	}
	if d.DoorKnob != "" {
		a, err := readAsset(resolve(d.DoorKnob))
		if err != nil {
			return nil, err
		}
		req.DoorKnob = &a
	}
	for _, item := range d.Clothing {
		a, err := readAsset(resolve(item.Path))
		if err != nil {
			return nil, err
		}
		req.Clothing = append(req.Clothing, rpc.ClothingUpload{Kind: item.Kind, Asset: a})
	}
	return req, nil
}

func readAsset(path string) (rpc.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rpc.Asset{}, err
	}
	return rpc.Asset{Name: filepath.Base(path), Data: data}, nil
}

func printProfile(p *rpc.Profile) {
	if jsonOut {
		outputJSON(p)
		return
	}
	fmt.Printf("UID:        %s\n", p.UID)
	fmt.Printf("Name:       %s (%s)\n", p.Name, p.Nickname)
	fmt.Printf("Institute:  %s\n", p.Institute)
	fmt.Printf("Location:   %s\n", p.Location)
	fmt.Printf("Blood:      %s\n", p.BloodGroup)
	fmt.Printf("Aesthetic:  %s\n", p.Aesthetic)
	if p.DoorKnobURL != "" {
		fmt.Printf("Door knob:  %s\n", p.DoorKnobURL)
	}
	for _, c := range p.Clothing {
		fmt.Printf("Clothing:   %-6s %s\n", c.Kind, c.URL)
	}
}
