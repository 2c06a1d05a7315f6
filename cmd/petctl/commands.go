package main

import (
	"errors"
	"fmt"

	"github.com/0xPexy/petpay-backend/internal/client"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

type session struct {
	api     *client.Client
	from    string
	network string
}

func newSession(cctx *cli.Context) (*session, error) {
	cfg, err := loadConfig(cctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	server := firstNonEmpty(cctx.String("server"), cfg.Server, "http://localhost:8080")
	token := firstNonEmpty(cctx.String("token"), cfg.Token)
	return &session{
		api:     client.New(server, client.WithToken(token)),
		from:    cfg.From,
		network: firstNonEmpty(cctx.String("network"), cfg.Network),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func commands() []*cli.Command {
	return []*cli.Command{payCmd, balanceCmd, repairCmd, provisionCmd, txCmd}
}

var payCmd = &cli.Command{
	Name:      "pay",
	Aliases:   []string{"transfer"},
	Usage:     "send USDC without paying gas",
	ArgsUsage: "<to> <amount>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "sender wallet address"},
		&cli.StringFlag{Name: "pet", Usage: "pet id the payment is for"},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return cli.ShowSubcommandHelp(cctx)
		}
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		req := client.TransferRequest{
			FromAddress: firstNonEmpty(cctx.String("from"), s.from),
			ToAddress:   cctx.Args().Get(0),
			Amount:      cctx.Args().Get(1),
			Network:     s.network,
		}
		if pet := cctx.String("pet"); pet != "" {
			req.PetID = &pet
		}
		res, err := s.api.PayWithRepair(cctx.Context, req)
		switch {
		case errors.Is(err, client.ErrRetryRequired):
			fmt.Println(color.YellowString("wallet repaired; run the payment again"))
			return nil
		case errors.Is(err, client.ErrReloadRequired):
			fmt.Println(color.RedString("%s", client.Guidance(client.CodeWalletNeedsRepair)))
			return err
		case err != nil:
			if code := client.CodeOf(err); code != "" {
				fmt.Println(color.RedString("%s", client.Guidance(code)))
			}
			return err
		}
		label := "submitted"
		if res.Duplicate {
			label = "already submitted"
		}
		fmt.Printf("%s %s\n", color.GreenString("%s", label), res.TransactionHash)
		return nil
	},
}

var balanceCmd = &cli.Command{
	Name:      "balance",
	Usage:     "show wallet balances",
	ArgsUsage: "[address]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "all", Usage: "include native ETH and USD totals"},
	},
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		addr := firstNonEmpty(cctx.Args().First(), s.from)
		if cctx.Bool("all") {
			p, err := s.api.AllBalances(cctx.Context, addr, s.network)
			if err != nil {
				return err
			}
			for _, b := range p.Balances {
				printBalance(b)
			}
			fmt.Printf("total  $%s\n", p.TotalUSD)
			return nil
		}
		res, err := s.api.Balance(cctx.Context, addr, s.network)
		if err != nil {
			return err
		}
		printBalance(res.Balance)
		return nil
	},
}

func printBalance(b client.Balance) {
	if b.Source != "live" {
		fmt.Printf("%-5s %s (%s)\n", b.Asset, color.YellowString("unavailable"), b.Error)
		return
	}
	line := fmt.Sprintf("%-5s %s", b.Asset, color.GreenString("%s", b.Display))
	if b.USD != nil {
		line += fmt.Sprintf("  ($%s)", *b.USD)
	}
	fmt.Println(line)
}

var repairCmd = &cli.Command{
	Name:      "repair",
	Usage:     "check and restore a wallet credential",
	ArgsUsage: "[address]",
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		res, err := s.api.Repair(cctx.Context, firstNonEmpty(cctx.Args().First(), s.from))
		if err != nil {
			if code := client.CodeOf(err); code != "" {
				fmt.Println(color.RedString("%s", client.Guidance(code)))
			}
			return err
		}
		fmt.Printf("%s %s\n", color.GreenString("%s", res.Status), res.Wallet.Address)
		return nil
	},
}

var provisionCmd = &cli.Command{
	Name:  "provision",
	Usage: "create a new wallet for the token's user, retiring the current one",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "type", Value: "user", Usage: "user or pet"},
		&cli.StringFlag{Name: "pet", Usage: "pet id for pet wallets"},
	},
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		req := client.ProvisionRequest{
			Type:    cctx.String("type"),
			Network: s.network,
		}
		if pet := cctx.String("pet"); pet != "" {
			req.PetID = &pet
		}
		res, err := s.api.Provision(cctx.Context, req)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s on %s\n", color.GreenString("created"), res.Wallet.Address, res.Wallet.Network)
		return nil
	},
}

var txCmd = &cli.Command{
	Name:      "tx",
	Usage:     "show a transaction record",
	ArgsUsage: "<hash>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return cli.ShowSubcommandHelp(cctx)
		}
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		tx, err := s.api.Transaction(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		status := tx.Status
		switch status {
		case "confirmed":
			status = color.GreenString("%s", status)
		case "failed":
			status = color.RedString("%s", status)
		default:
			status = color.YellowString("%s", status)
		}
		fmt.Printf("%s %s  %s -> %s  %s base units\n", tx.TransactionHash, status, tx.From, tx.To, tx.Amount)
		return nil
	},
}
