package commands

import (
	"fmt"
	"log"

	"ecoline-bot/lib/timezone"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lastOrderCmd)
}

var lastOrderCmd = &cobra.Command{
	Use:   "last-order",
	Short: "Prints the date of the last order as the site renders it.",
	Run: func(cmd *cobra.Command, args []string) {
		last, present, err := requireClient(cmd.Context()).LastOrder(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}
		if !present {
			fmt.Println("no orders found on the site")
			return
		}
		fmt.Printf("Предыдущий заказ был сделан: %s\n", timezone.FormatDate(last.Date))
		fmt.Printf("Прошло дней: %d\n", last.DaysAgo)
	},
}
