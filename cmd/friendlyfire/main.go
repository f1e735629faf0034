package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/health"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/logger"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/server"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/service"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

const commandTimeout = 30 * time.Second

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to the service config",
	Value:   "config.yml",
	EnvVars: []string{"FRIENDLYFIRE_CONFIG"},
}

func main() {
	app := &cli.App{
		Name:    "friendlyfire",
		Usage:   "friend identity cache and nameplate resolution service",
		Version: health.GetBuildInfo().String(),
		Commands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "Start the service",
				Flags:  []cli.Flag{configFlag},
				Action: start,
			},
			{
				Name:      "seed",
				Usage:     "Import friend cache entries from a YAML file",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{configFlag},
				Action:    seed,
			},
			{
				Name:  "dump",
				Usage: "Print the persisted friend settings",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "format", Usage: "json or yaml", Value: "json"},
				},
				Action: dump,
			},
			{
				Name:      "hash-token",
				Usage:     "Hash an admin API token for server.auth.token_hash",
				ArgsUsage: "<token>",
				Action:    hashToken,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func start(c *cli.Context) error {
	svc, err := service.NewService(c.Context, c.String(configFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return svc.Start()
}

func seed(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("seed needs exactly one file argument", 2)
	}

	entries, err := service.LoadSeedFile(c.Args().First())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	offline, err := service.OpenOfflineFromFile(ctx, c.String(configFlag.Name), logger.NewNop())
	if err != nil {
		return err
	}

	added := offline.Import(entries)
	total := len(offline.Engine().CacheEntries())

	if err := offline.Close(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "imported %d of %d entries, cache now holds %d\n", added, len(entries), total)
	return nil
}

func dump(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	offline, err := service.OpenOfflineFromFile(ctx, c.String(configFlag.Name), logger.NewNop())
	if err != nil {
		return err
	}

	settings := offline.Settings()
	if err := offline.Discard(); err != nil {
		return err
	}

	var out []byte
	switch c.String("format") {
	case "json":
		out, err = utils.Marshal(settings)
	case "yaml":
		out, err = yaml.Marshal(settings)
	default:
		return types.Errorf(types.ErrInvalidParameter, "unknown format %q", c.String("format"))
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

func hashToken(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("hash-token needs exactly one token argument", 2)
	}

	hash, err := server.HashToken(c.Args().First())
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, hash)
	return nil
}
