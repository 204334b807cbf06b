package commands

import (
	"fmt"
	"os"

	"github.com/gridsnake/engine/cmd/snake/commands/server"
	"github.com/gridsnake/engine/config"
	"github.com/gridsnake/engine/controller"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "snake",
	Short: "snake plays and serves the multiplayer grid snake game",
	Run: func(c *cobra.Command, args []string) {
		playCmd.Run(c, args)
	},
}

var (
	apiAddr   = "http://localhost:3005"
	relayAddr = "ws://localhost:3005"
	redisURL  = ""
	room      = "lobby"
)

// Execute runs the root command
func Execute() {
	controller.ClaimExpiry = config.ClaimExpiry

	rootCmd.PersistentFlags().StringVar(&apiAddr, "api-addr", apiAddr, "address of the api server")
	rootCmd.PersistentFlags().StringVar(&relayAddr, "relay-addr", relayAddr, "websocket address of the relay")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", redisURL, "sync through this redis instead of the relay")
	rootCmd.PersistentFlags().StringVarP(&room, "room", "r", room, "room to join")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(server.RootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
