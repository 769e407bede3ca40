package commands

import (
	"context"
	"fmt"
	"log"
	"os"

	"ecoline-bot/lib/configutil"
	"ecoline-bot/lib/scrapers/ecoline"

	"github.com/spf13/cobra"
)

type productConfig struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func (p productConfig) toProduct() ecoline.Product {
	return ecoline.Product{Name: p.Name, Quantity: p.Quantity}
}

type ecolineConfig struct {
	BaseUrl  string        `json:"baseurl"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Product  productConfig `json:"product"`
}

// Config is the slice of the bot's config.json5 the CLI cares about;
// unrelated keys are ignored.
type Config struct {
	Ecoline     ecolineConfig `json:"ecoline"`
	HistoryPath string        `json:"history_path"`
}

var cfg Config
var client *ecoline.Client

var rootCmd = &cobra.Command{
	Use:   "ecoline-cli",
	Short: "ecoline-cli pokes the water delivery site with the bot's scraping client.",
}

func ExecuteContext(ctx context.Context) {
	var err error
	cfg, err = configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// requireClient logs in on first use so purely local commands never
// touch the site.
func requireClient(ctx context.Context) *ecoline.Client {
	if client != nil {
		return client
	}

	c, err := ecoline.NewClient(ctx, ecoline.ClientOptions{
		BaseUrl:  cfg.Ecoline.BaseUrl,
		Username: cfg.Ecoline.Username,
		Password: cfg.Ecoline.Password,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := c.Login(ctx); err != nil {
		log.Fatal(err)
	}

	client = c
	return client
}
