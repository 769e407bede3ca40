package commands

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(bonusCmd)
}

var bonusCmd = &cobra.Command{
	Use:   "bonus",
	Short: "Prints the account's bonus balance.",
	Run: func(cmd *cobra.Command, args []string) {
		bonus, present, err := requireClient(cmd.Context()).Bonus(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}
		if !present {
			fmt.Println("the profile page does not show a bonus balance")
			return
		}
		fmt.Printf("Бонусный баланс: %d\n", bonus)
	},
}
