package main

import (
	"context"
	"fmt"

	"github.com/go-i2p/go-nat-transfer/transfer"
)

// send validates the input file, then streams it to the peer.
func (c *cli) send(ctx context.Context) error {
	src, err := transfer.OpenSource(c.sendPath)
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Fprintf(c.stdout, "Sending to %s\n", c.peer)
	if _, err := transfer.NewSender(c.peer).Send(ctx, src); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "Done!")
	return nil
}
