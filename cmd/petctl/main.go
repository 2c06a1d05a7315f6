// Command petctl pays, checks balances and repairs wallets against a petpay
// server.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "petctl",
		Usage: "gas-free USDC payments for pet wallets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a TOML profile"},
			&cli.StringFlag{Name: "server", Usage: "API base URL", EnvVars: []string{"PETPAY_SERVER"}},
			&cli.StringFlag{Name: "token", Usage: "bearer token", EnvVars: []string{"PETPAY_TOKEN"}},
			&cli.StringFlag{Name: "network", Usage: "network name", EnvVars: []string{"PETPAY_NETWORK"}},
		},
		Commands: commands(),
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
