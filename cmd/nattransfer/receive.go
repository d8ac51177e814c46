package main

import (
	"context"
	"fmt"
	"net"

	units "github.com/docker/go-units"
	"github.com/rs/zerolog/log"

	nattraversal "github.com/go-i2p/go-nat-transfer"
	"github.com/go-i2p/go-nat-transfer/internal/config"
	"github.com/go-i2p/go-nat-transfer/transfer"
)

// receive prepares a reachable endpoint, announces it and waits for one sender.
func (c *cli) receive(ctx context.Context, cfg *config.Config) error {
	opts := nattraversal.EndpointOptions{
		LocalIP: c.localIP,
		Port:    uint16(cfg.Port),
		Lease:   cfg.LeaseDuration(),
		Timeout: cfg.Timeout(),
	}
	if cfg.Gateway.MapPort {
		opts.Negotiator = c.negotiator(cfg)
	}
	if cfg.PublicAddr.Enabled {
		opts.Resolvers = c.resolvers(cfg)
	}

	endpoint, err := nattraversal.PrepareEndpoint(ctx, opts)
	if err != nil {
		return err
	}
	if endpoint.Mapping == nil {
		log.Warn().Msg("no port mapping; the endpoint is only reachable without NAT in between")
	}

	r := transfer.NewReceiver(endpoint.InternalAddr(), cfg.Output)
	r.OnListen = func(net.Addr) {
		fmt.Fprintf(c.stdout, "Endpoint created at %s\nListening...\n", endpoint)
	}

	n, err := r.Receive(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "\nTransfer complete! %s written to %s\n", units.HumanSize(float64(n)), r.Output())
	return nil
}
