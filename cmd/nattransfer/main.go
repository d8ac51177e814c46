// Command nattransfer sends or receives one file over a direct TCP connection, asking the
// local NAT gateway to forward a port on the receiving side.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	nattraversal "github.com/go-i2p/go-nat-transfer"
	"github.com/go-i2p/go-nat-transfer/internal/config"
)

// cli carries flag values and the collaborators a run uses. Tests swap the collaborators.
type cli struct {
	cfgFile  string
	logLevel string
	sendPath string
	peer     string
	output   string
	port     int
	noMap    bool

	stdout io.Writer
	stderr io.Writer

	// keepLogger leaves the global logger as it is.
	keepLogger bool

	// localIP, when valid, replaces internal address discovery.
	localIP    netip.Addr
	negotiator func(cfg *config.Config) nattraversal.Negotiator
	resolvers  func(cfg *config.Config) []nattraversal.PublicAddrResolver
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCLI(os.Stdout, os.Stderr)
	if err := c.execute(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}

// execute runs the command line args and prints any failure.
func (c *cli) execute(ctx context.Context, args []string) error {
	cmd := c.command()
	cmd.SetArgs(args)
	return c.report(cmd.ExecuteContext(ctx))
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		stdout:     stdout,
		stderr:     stderr,
		negotiator: defaultNegotiator,
		resolvers:  defaultResolvers,
	}
}

func (c *cli) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nattransfer",
		Short: "Send or receive a file over a direct TCP connection",
		Long: `Send or receive files. Receiving is the default unless --send is used.

The receiver picks a port, asks the NAT gateway (UPnP IGD or NAT-PMP) to forward it,
prints the endpoint to give to the sender and writes the incoming file to out.bin.

  nattransfer
  nattransfer --send photo.jpg --ip 203.0.113.5:40123`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.run,
	}
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)

	f := cmd.Flags()
	f.StringVarP(&c.sendPath, "send", "s", "", "file to send (receive when unset)")
	f.StringVarP(&c.peer, "ip", "o", "", "peer's network address (ip:port), required with --send")
	f.StringVarP(&c.cfgFile, "config", "c", "", "config file path")
	f.StringVarP(&c.logLevel, "log-level", "l", "", "log level (overrides config)")
	f.StringVar(&c.output, "output", "", "where to write a received file (overrides config)")
	f.IntVarP(&c.port, "port", "p", 0, "port to receive on, 0 picks a free one (overrides config)")
	f.BoolVar(&c.noMap, "no-map", false, "do not ask the gateway for a port mapping")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	if !c.keepLogger {
		c.setupLogging(cfg.LogLevel)
	}

	if c.sendPath != "" {
		return c.send(cmd.Context())
	}
	return c.receive(cmd.Context(), cfg)
}

// loadConfig reads the config file, then applies flags that were given explicitly.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if flags.Changed("output") {
		cfg.Output = c.output
	}
	if flags.Changed("port") {
		cfg.Port = c.port
	}
	if c.noMap {
		cfg.Gateway.MapPort = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c.sendPath == "" && flags.Changed("ip") {
		return nil, errors.New("--ip is only used with --send")
	}
	if c.sendPath != "" && c.peer == "" {
		return nil, errors.New("--send requires --ip")
	}
	return cfg, nil
}

func (c *cli) setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: c.stderr})
}

// report prints err with its cause chain and hands it back for the exit status.
func (c *cli) report(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.stderr, "Interrupted.")
		return err
	}
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
	return err
}

func defaultNegotiator(cfg *config.Config) nattraversal.Negotiator {
	return nattraversal.NewIGDNegotiator(cfg.Gateway.UPnP, cfg.Gateway.NATPMP)
}

func defaultResolvers(cfg *config.Config) []nattraversal.PublicAddrResolver {
	rs := []nattraversal.PublicAddrResolver{nattraversal.NewDNSResolver(cfg.PublicAddr.DNSServer)}
	for _, s := range cfg.PublicAddr.STUNServers {
		rs = append(rs, nattraversal.NewSTUNResolver(s))
	}
	return rs
}
