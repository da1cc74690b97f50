package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"tvbroker/internal/record"
)

const defaultWatchAddr = "127.0.0.1:21976"

func runWatch(args []string) error {
	var decode bool
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	fs.BoolVar(&decode, "decode", false, "print decoded fields instead of raw lines")
	if done, err := parseFlags(fs, args); done {
		return err
	}
	addr := defaultWatchAddr
	if fs.NArg() > 0 {
		addr = fs.Arg(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		if !decode {
			fmt.Println(line)
			continue
		}
		rec, err := record.Parse(line)
		if err != nil {
			fmt.Println(line)
			continue
		}
		fmt.Printf("%s %v\n", rec.Time().Format("2006-01-02 15:04:05"), record.DecodeFields(rec.Payload))
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}
