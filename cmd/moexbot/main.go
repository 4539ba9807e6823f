package main

import (
	"context"
	"fmt"
	"log"
	"os"

	_ "time/tzdata"

	corecmd "github.com/m3rciful/moexbot/core/cmd"
	"github.com/m3rciful/moexbot/internal/bot"
	"github.com/m3rciful/moexbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		Args:              os.Args[1:],
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cc corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := cc.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cc)
			}
			return bot.Bootstrap(ctx, cfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
