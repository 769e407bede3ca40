package commands

import (
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(basketCmd)
	rootCmd.AddCommand(clearBasketCmd)
	rootCmd.AddCommand(stageCmd)
}

var basketCmd = &cobra.Command{
	Use:   "basket",
	Short: "Prints the current contents of the remote basket.",
	Run: func(cmd *cobra.Command, args []string) {
		snapshot, err := requireClient(cmd.Context()).Basket(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}
		if snapshot.Empty() {
			fmt.Println("basket is empty")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Name", "Quantity"})
		for _, item := range snapshot.Items {
			t.AppendRow(table.Row{item.ID, item.Name, item.Quantity})
		}
		t.AppendFooter(table.Row{"", "Total", snapshot.Total.String() + " руб."})
		t.Render()
	},
}

var clearBasketCmd = &cobra.Command{
	Use:   "clear-basket",
	Short: "Deletes every line item from the remote basket.",
	Run: func(cmd *cobra.Command, args []string) {
		cleared, err := requireClient(cmd.Context()).ClearBasket(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}
		if !cleared {
			fmt.Println("basket still has items after clearing, check the site")
			os.Exit(1)
		}
		fmt.Println("basket cleared")
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Clears the basket and stages the configured product, like the start of an order.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client := requireClient(ctx)

		cleared, err := client.ClearBasket(ctx)
		if err != nil {
			log.Fatal(err)
		}
		if !cleared {
			log.Fatal("basket still has items after clearing")
		}
		err = client.AddToBasket(ctx, cfg.Ecoline.Product.toProduct())
		if err != nil {
			log.Fatal(err)
		}

		snapshot, err := client.Basket(ctx)
		if err != nil {
			log.Fatal(err)
		}
		if snapshot.Empty() {
			log.Fatal("basket is empty, the product did not resolve against the catalog")
		}
		for _, item := range snapshot.Items {
			fmt.Printf("- %s - %d шт\n", item.Name, item.Quantity)
		}
		fmt.Printf("Итоговая стоимость: %s руб.\n", snapshot.Total.String())
	},
}
