package commands

import (
	"fmt"
	"log"
	"os"

	"ecoline-bot/services/orderbot"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Prints the local order history log, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		records, err := orderbot.NewHistoryLog(cfg.HistoryPath).All()
		if err != nil {
			log.Fatal(err)
		}
		if len(records) == 0 {
			fmt.Println("no orders recorded yet")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Submitted", "Delivery", "Window", "Payment", "User"})
		for _, record := range records {
			t.AppendRow(table.Row{
				record.SubmittedDate + " " + record.SubmittedTime,
				record.DeliveryDate,
				record.DeliveryWindow,
				record.Payment,
				fmt.Sprintf("%s (%d)", record.UserName, record.UserID),
			})
		}
		t.Render()
	},
}
