package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/hidock/jensen-client/jensen"
)

var (
	cachePath = flag.String("cache", "jensen-cache.json", "path to the recordings cache file")
	timeout   = flag.Duration("timeout", 30*time.Second, "overall command timeout")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg := jensen.DefaultConfig()
	cfg.Store = jensen.NewFileKeyValueStore(*cachePath)
	client := jensen.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jensen-cli: connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect(true)

	var err error
	switch args[0] {
	case "info":
		err = runInfo(ctx, client)
	case "list":
		err = runList(ctx, client, args[1:])
	case "download":
		err = runDownload(ctx, client, args[1:])
	case "delete":
		err = runDelete(ctx, client, args[1:])
	case "settings":
		err = runSettings(ctx, client)
	default:
		fmt.Fprintf(os.Stderr, "jensen-cli: unknown command %q\n", args[0])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "jensen-cli: %s: %v\n", args[0], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `jensen-cli: one-shot Jensen protocol client

Usage:
  jensen-cli [flags] <command> [args]

Commands:
  info                 print device firmware version, serial, storage
  list [-refresh]       list recordings (cached unless -refresh is given)
  download <name> <size> <out-path>   download a recording to a local file
  delete <name>         delete a recording on the device
  settings              print the device's preference flags

Flags:
`)
	flag.PrintDefaults()
}

func runInfo(ctx context.Context, client *jensen.Client) error {
	info, err := client.GetDeviceInfo(ctx)
	if err != nil {
		return err
	}
	storage, err := client.GetStorageInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("firmware:  %s\n", info.FirmwareVersion)
	fmt.Printf("serial:    %s\n", info.SerialNumber)
	fmt.Printf("storage:   %d/%d bytes used, %d files\n", storage.UsedBytes, storage.TotalBytes, storage.FileCount)
	return nil
}

func runList(ctx context.Context, client *jensen.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	refresh := fs.Bool("refresh", false, "bypass the cache and refetch from the device")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recs, err := client.ListRecordings(ctx, *refresh)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLENGTH\tDURATION\tCREATED\tGUESSED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%v\n", r.Name, r.Length, r.Duration, r.CreatedAt.Format(time.RFC3339), r.DateGuessed)
	}
	return tw.Flush()
}

func runDownload(ctx context.Context, client *jensen.Client, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: download <name> <size> <out-path>")
	}
	name := args[0]
	size, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", args[1], err)
	}
	outPath := args[2]

	data, err := client.GetFileBlock(ctx, name, uint32(size))
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(data), outPath)
	return nil
}

func runDelete(ctx context.Context, client *jensen.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <name>")
	}
	if err := client.DeleteFile(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func runSettings(ctx context.Context, client *jensen.Client) error {
	s, err := client.GetSettings(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("auto_record:    %v\n", s.AutoRecord)
	fmt.Printf("auto_play:      %v\n", s.AutoPlay)
	fmt.Printf("notification:   %v\n", s.Notification)
	fmt.Printf("bluetooth_tone: %v\n", s.BluetoothTone)
	return nil
}
