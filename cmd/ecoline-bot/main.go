package main

import (
	"context"
	"flag"

	"ecoline-bot/lib/configutil"
	"ecoline-bot/lib/scrapers/ecoline"
	"ecoline-bot/lib/util/serviceutil"
	"ecoline-bot/services/orderbot"
	"ecoline-bot/services/orderbot/telegram"
)

type ProductConfig struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type EcolineConfig struct {
	BaseUrl  string        `json:"baseurl"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Product  ProductConfig `json:"product"`
}

type TelegramConfig struct {
	Token     string  `json:"token"`
	AllowUser []int64 `json:"allow_user"`
	AllowChat []int64 `json:"allow_chat"`
}

type Config struct {
	Ecoline     EcolineConfig  `json:"ecoline"`
	Telegram    TelegramConfig `json:"telegram"`
	HistoryPath string         `json:"history_path"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	factory := func(ctx context.Context) (orderbot.OrderClient, error) {
		client, err := ecoline.NewClient(ctx, ecoline.ClientOptions{
			BaseUrl:  cfg.Ecoline.BaseUrl,
			Username: cfg.Ecoline.Username,
			Password: cfg.Ecoline.Password,
		})
		if err != nil {
			return nil, err
		}
		if err := client.Login(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}

	bot, err := telegram.NewBot(cfg.Telegram.Token, *verbose)
	if err != nil {
		serviceutil.Fatal("init telegram bot", err)
	}

	service := orderbot.NewService(bot, factory, orderbot.Options{
		Product: ecoline.Product{
			Name:     cfg.Ecoline.Product.Name,
			Quantity: cfg.Ecoline.Product.Quantity,
		},
		HistoryPath: cfg.HistoryPath,
		Access: orderbot.AccessPolicy{
			Users: cfg.Telegram.AllowUser,
			Chats: cfg.Telegram.AllowChat,
		},
	})

	bot.Run(ctx, service)
}
