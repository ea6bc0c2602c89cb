package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"snigate/cli"
)

const VERSION = "1.0.0"

func main() {
	if len(os.Args) > 1 {
		os.Exit(runCommand(os.Args[1:], os.Stdout))
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "snigate:", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := GetDataDirectory()
	cfg, err := LoadConfig(GetConfigPath(dataDir))
	if err != nil {
		return err
	}
	logger, closeLog, err := NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	hosts, err := LoadHosts(GetHostsDirectory(dataDir))
	if err != nil {
		return err
	}
	gw, err := NewGateway(cfg, hosts, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := gw.Start(); err != nil {
		return err
	}
	return gw.Serve(ctx)
}

// runCommand handles the non-serving invocations and returns the exit code.
func runCommand(args []string, out io.Writer) int {
	switch args[0] {
	case "--version", "-v":
		fmt.Fprintf(out, "snigate version %s\n", VERSION)
		return 0
	case "--help", "-h":
		printUsage(out)
		return 0
	case "validate":
		return validate(GetDataDirectory(), out)
	case "cert":
		if len(args) < 3 || args[1] != "generate" {
			fmt.Fprintln(out, "Usage: snigate cert generate <host> [dir]")
			return 1
		}
		dir := "."
		if len(args) > 3 {
			dir = args[3]
		}
		certPath, keyPath, err := cli.GenerateSelfSignedCert(dir, args[2])
		if err != nil {
			fmt.Fprintln(out, "Failed to generate self-signed certificate:", err)
			return 1
		}
		fmt.Fprintf(out, "Generated self-signed certificate: %s and %s\n", certPath, keyPath)
		return 0
	}
	fmt.Fprintln(out, "Unknown argument:", args[0])
	printUsage(out)
	return 1
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: snigate [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --version, -v               Show version information")
	fmt.Fprintln(out, "  --help, -h                  Show this help message")
	fmt.Fprintln(out, "  validate                    Validate the configuration, host files and certificates")
	fmt.Fprintln(out, "  cert generate <host> [dir]  Generate a self-signed TLS certificate for the specified host")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "The data directory defaults to ~/.snigate and can be set with SNIGATE_DATA_DIR.")
}

// validate loads everything the server would load at startup without
// opening any socket.
func validate(dataDir string, out io.Writer) int {
	fmt.Fprintln(out, "Validating configuration in", dataDir)
	cfg, err := LoadConfig(GetConfigPath(dataDir))
	if err != nil {
		fmt.Fprintln(out, "Invalid configuration:", err)
		return 1
	}
	hosts, err := LoadHosts(GetHostsDirectory(dataDir))
	if err != nil {
		fmt.Fprintln(out, "Invalid hosts:", err)
		return 1
	}
	table, err := NewHostTable(hosts, cfg.TLS.DefaultHost)
	if err != nil {
		fmt.Fprintln(out, "Invalid hosts:", err)
		return 1
	}

	fmt.Fprintf(out, "Loaded %d host file(s)\n", len(hosts))
	fmt.Fprintln(out, "Routes:")
	for _, name := range table.RouteNames() {
		route, _ := table.ResolveOrigin(name)
		fmt.Fprintf(out, "  %s -> %s\n", name, route.Origin)
	}
	fmt.Fprintln(out, "Certificates:")
	for _, name := range table.CertificateNames() {
		cert, _ := table.ResolveCertificate(name)
		subject := ""
		if cert.Leaf != nil {
			subject = cert.Leaf.Subject.CommonName
		}
		fmt.Fprintf(out, "  %s -> %s\n", name, subject)
	}
	fmt.Fprintf(out, "Default certificate: %s\n", table.DefaultHost())
	if host := FindHost(hosts, table.DefaultHost()); host != nil {
		fmt.Fprintf(out, "Default host file: %s\n", host.Source)
	}
	fmt.Fprintln(out, "Configuration is valid")
	return 0
}
